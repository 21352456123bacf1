package optimistic

import "fmt"

const (
	msgLoginRequired   = "connectez-vous pour continuer"
	msgConflictPending = "le contenu a changé sur un autre appareil, choisissez une résolution"
)

func addedMessage(label, name string) string {
	if name == "" {
		return fmt.Sprintf("%s : article ajouté", label)
	}
	return fmt.Sprintf("%s : « %s » ajouté", label, name)
}

func alreadyPresentMessage(label, name string) string {
	if name == "" {
		return fmt.Sprintf("%s : article déjà présent", label)
	}
	return fmt.Sprintf("%s : « %s » déjà présent", label, name)
}

func removedMessage(label string) string {
	return fmt.Sprintf("%s : article retiré", label)
}

func clearedMessage(label string) string {
	return fmt.Sprintf("%s : vidé", label)
}

func movedMessage(n int) string {
	if n == 1 {
		return "1 déplacé"
	}
	return fmt.Sprintf("%d déplacés", n)
}

func moveErrorsMessage(n int) string {
	if n == 1 {
		return "1 erreur"
	}
	return fmt.Sprintf("%d erreurs", n)
}

func failureMessage(kind OpKind) string {
	switch kind {
	case OpAdd:
		return "impossible d'ajouter l'article, réessayez"
	case OpRemove:
		return "impossible de retirer l'article, réessayez"
	case OpUpdate:
		return "impossible de modifier la quantité, réessayez"
	case OpClear:
		return "impossible de vider la liste, réessayez"
	case OpMove:
		return "impossible de déplacer les articles, réessayez"
	default:
		return "opération échouée, réessayez"
	}
}
