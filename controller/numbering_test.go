package controller

import (
	"fmt"
	"testing"
	"time"
)

func TestFormatNumero(t *testing.T) {
	year := time.Now().Year()
	testdata := []struct {
		template     string
		clientNumber string
		counter      int
		want         string
	}{
		{"F-%YYYY%-%04C%", "", 7, fmt.Sprintf("F-%04d-0007", year)},
		{"%YYYY%-%CN%-%04C%", "12", 7, fmt.Sprintf("%04d-12-0007", year)},
		{"%YY%-%C%", "", 7, fmt.Sprintf("%02d-7", year%100)},
		// A width without a leading zero is not padded.
		{"%3C%", "", 7, "7"},
		{"%0C%", "", 7, "7"},
		{"%010C%", "", 7, "0000000007"},
		// Every counter occurrence gets the same value.
		{"%02C%/%02C%", "", 7, "07/07"},
		{"DEVIS-%CN%", "12", 1, "DEVIS-12"},
		{"%CN%-%C%", "", 7, "-7"},
		{"sans placeholder", "12", 7, "sans placeholder"},
	}
	for _, td := range testdata {
		got := formatNumero(td.template, td.clientNumber, td.counter)
		if got != td.want {
			t.Errorf("formatNumero(%q, %q, %d) = %q, want %q",
				td.template, td.clientNumber, td.counter, got, td.want)
		}
	}
}
