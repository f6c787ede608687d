package controller

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

var (
	commaperiod            = strings.NewReplacer(",", ".")
	customerNumberReplacer = regexp.MustCompile(`%CN%`)
	counterReplacer        = regexp.MustCompile(`%(0?)(\d*)C%`)
	year4Replacer          = regexp.MustCompile(`%YYYY%`)
	year2Replacer          = regexp.MustCompile(`%YY%`)
)

// formatNumero expands a numbering template from the parametres. Supported
// placeholders: %YYYY%, %YY%, %CN% (client number) and %C% with an optional
// zero-padded width, e.g. %04C%.
func formatNumero(in string, clientNumber string, counter int) string {
	in = customerNumberReplacer.ReplaceAllLiteralString(in, clientNumber)

	now := time.Now()
	year := now.Year()
	in = year4Replacer.ReplaceAllLiteralString(in, fmt.Sprintf("%04d", year))
	in = year2Replacer.ReplaceAllLiteralString(in, fmt.Sprintf("%02d", year%100))

	if counterReplacer.MatchString(in) {
		x := counterReplacer.FindAllStringSubmatch(in, -1)
		for _, m := range x {
			var formatted string
			if m[2] == "" { // no width: just %d
				formatted = fmt.Sprintf("%d", counter)
			} else if m[1] == "0" {
				formatted = fmt.Sprintf("%0"+m[2]+"d", counter)
			} else {
				// width given but no leading zero: %d
				formatted = fmt.Sprintf("%d", counter)
			}
			in = counterReplacer.ReplaceAllString(in, formatted)
		}
	}
	return in
}

func paramUint(c echo.Context, name string) uint {
	v, _ := strconv.ParseUint(c.Param(name), 10, 64)
	return uint(v)
}
