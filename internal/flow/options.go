package flow

import "github.com/BTreeMap/Lumi/internal/models"

// ConversationContext labels the session state used to scope local pattern lookups.
type ConversationContext string

const (
	ContextFollowUp         ConversationContext = "followup"
	ContextResource         ConversationContext = "resource"
	ContextStress           ConversationContext = "stress"
	ContextNameRegistration ConversationContext = "name_registration"
	ContextGeneral          ConversationContext = "general"
)

// ResolveContext maps a session onto its matching context.
func ResolveContext(sess *models.Session) ConversationContext {
	switch sess.Mode {
	case models.ModeAwaitingFollowUpTime:
		return ContextFollowUp
	case models.ModeChoosingResource:
		return ContextResource
	case models.ModeChoosingStressOption:
		return ContextStress
	case models.ModeGeneral:
	}
	if sess.UserName == "" {
		return ContextNameRegistration
	}
	return ContextGeneral
}

// StressOption is one entry of the five-item support menu.
type StressOption int

const (
	OptionUnknown StressOption = iota
	OptionPhoto
	OptionVideo
	OptionMusic
	OptionTalk
	OptionReminder
)

// ParseStressOption parses normalized input as a menu numeral or keyword.
func ParseStressOption(normalized string) StressOption {
	switch normalized {
	case "1", "foto":
		return OptionPhoto
	case "2", "video":
		return OptionVideo
	case "3", "musica":
		return OptionMusic
	case "4", "hablar":
		return OptionTalk
	case "5", "recordatorio":
		return OptionReminder
	default:
		return OptionUnknown
	}
}

// Resource returns the resource an option requests, if any.
func (o StressOption) Resource() (models.ResourceType, bool) {
	switch o {
	case OptionPhoto:
		return models.ResourcePhoto, true
	case OptionVideo:
		return models.ResourceVideo, true
	case OptionMusic:
		return models.ResourceMusic, true
	default:
		return "", false
	}
}

// ParseResourceChoice parses normalized input given while choosing a resource.
func ParseResourceChoice(normalized string) (models.ResourceType, bool) {
	switch normalized {
	case "foto", "1":
		return models.ResourcePhoto, true
	case "video", "2":
		return models.ResourceVideo, true
	case "musica", "3":
		return models.ResourceMusic, true
	default:
		return "", false
	}
}

// resourceQuery is the fixed search query for each resource type.
func resourceQuery(rt models.ResourceType) string {
	switch rt {
	case models.ResourcePhoto:
		return "naturaleza relajante"
	case models.ResourceVideo:
		return "meditación guiada"
	default:
		return "música relajante"
	}
}

func resourceLabel(rt models.ResourceType) string {
	switch rt {
	case models.ResourcePhoto:
		return "foto"
	case models.ResourceVideo:
		return "video"
	default:
		return "música"
	}
}

func resourceTopic(rt models.ResourceType) string {
	if rt == models.ResourceVideo {
		return "meditación"
	}
	return "música"
}

func alternativeLabels(rt models.ResourceType) []string {
	var out []string
	for _, other := range []models.ResourceType{models.ResourcePhoto, models.ResourceVideo, models.ResourceMusic} {
		if other != rt {
			out = append(out, resourceLabel(other))
		}
	}
	return out
}
