package model

import "fmt"

// ValidationKind identifies which rule a draft or line violated.
type ValidationKind string

const (
	ValidationAucuneLigne      ValidationKind = "aucune_ligne"
	ValidationLigneInvalide    ValidationKind = "ligne_invalide"
	ValidationQuantiteInvalide ValidationKind = "quantite_invalide"
	ValidationPrixInvalide     ValidationKind = "prix_invalide"
	ValidationRemiseInvalide   ValidationKind = "remise_invalide"
)

// ValidationError is returned by draft operations and ValidateForSave.
// Ligne is the zero-based line index, or -1 for document-level failures.
type ValidationError struct {
	Kind  ValidationKind
	Ligne int
}

func (e *ValidationError) Error() string {
	if e.Ligne < 0 {
		return fmt.Sprintf("validation: %s", e.Kind)
	}
	return fmt.Sprintf("validation: %s (ligne %d)", e.Kind, e.Ligne)
}

func validationErr(kind ValidationKind, ligne int) *ValidationError {
	return &ValidationError{Kind: kind, Ligne: ligne}
}

var (
	ErrIndexLigne            = fmt.Errorf("index de ligne hors limites")
	ErrChampInconnu          = fmt.Errorf("champ de ligne inconnu")
	ErrPrestationIntrouvable = fmt.Errorf("prestation introuvable")
	ErrClientIntrouvable     = fmt.Errorf("client introuvable")
	ErrCodePrestationExiste  = fmt.Errorf("ce code de prestation existe déjà")
	ErrStatutInconnu         = fmt.Errorf("statut inconnu")
)
