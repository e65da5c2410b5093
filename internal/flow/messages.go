package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/Lumi/internal/models"
)

// Fixed reply texts. Lumi speaks Spanish to its users.
const (
	crisisMessage = "⚠️ **¡Veo que estás en una situación difícil!** ⚠️\n\n" +
		"1. Llama a tu línea local de ayuda: *0994101922* 📱\n" +
		"2. Ejercicio de grounding: Nombra:\n   - 5 cosas que ves 👀\n   - 4 que puedes tocar ✋\n   - 3 que oyes 👂\n" +
		"3. Respira conmigo: Inhala 4s... Mantén 7s... Exhala 8s... 🧘"

	onboardingMessage = "¡Hola! ✨ Soy Lumi, tu chatbot de apoyo. ¿Cómo te llamas?"

	feedbackPositiveMessage = "¡Me alegra haberte ayudado! 😊 ¿Necesitas algo más?"
	feedbackNegativeMessage = "Lo siento, intentaré mejorar 😓. ¿En qué fallé exactamente?"

	cancelMessage = "Operación cancelada. ¿En qué más puedo ayudarte?"

	genericErrorMessage = "Hubo un error al procesar tu mensaje. Por favor, inténtalo de nuevo."

	helpMessage = "🛟 *Comandos disponibles:*\n\n" +
		"*/estadisticas* - Ver tus insights semanales 📈\n" +
		"*/recursos* - Mostrar opciones de relajación 🤔\n" +
		"*/recordatorio* - Configurar seguimiento ⏰"

	unknownCommandMessage = "Comando no reconocido. Usa /ayuda para ver opciones disponibles."

	stressOptionsMenu = "1. 🌄 Foto relajante\n" +
		"2. 🧘 Video de meditación\n" +
		"3. 🎵 Música relajante\n" +
		"4. 💬 Hablar de cómo me siento\n" +
		"5. ⏰ Configurar recordatorio"

	stressOptionNotUnderstoodMessage = "No entendí tu elección 🚫. Por favor elige una opción del 1 al 5 o escribe " +
		"\"foto\", \"video\", \"música\", \"hablar\" o \"recordatorio\"."

	talkMessage = "Cuéntame más sobre cómo te sientes. Estoy aquí para escucharte 💬."

	reminderPromptMessage = "¿A qué hora te gustaría recibir recordatorios diarios? ⏰\n\n" +
		"Por favor escribe la hora en formato 24 horas (por ejemplo: 14:30 para las 2:30 PM) 😎\n\n" +
		"Puedes cancelar en cualquier momento escribiendo \"cancelar\" ❌"

	invalidResourceChoiceMessage = "Por favor elige una opción válida: \"foto\", \"video\" o \"música\""

	followUpCancelledMessage = "Configuración de recordatorio cancelada ❌. ¿En qué más puedo ayudarte?"

	invalidFollowUpTimeMessage = "Formato de hora no válido 🥺. Por favor ingresa la hora en formato 24h 🙄 (ej. 14:30) o escribe \"cancelar\""

	resourceFeedbackPrompt = "\n\n¿Te gustó? (Responde 👍/👎)"

	followUpHistoryMessage = "Seguimiento automático"
)

func statsMessage(insights string) string {
	return "📊 *Tus estadísticas:*" + insights
}

func greetingMessage(sess *models.Session) string {
	emoji := "✨"
	if sess.PositiveEmotionStreak > 3 {
		emoji = "🌟"
	}
	switch {
	case sess.UserName == "":
		return fmt.Sprintf("¡Hola! %s Soy Lumi, tu chatbot de apoyo. ¿Cómo te llamas?", emoji)
	case sess.InteractionStreak > 3:
		return fmt.Sprintf("¡Hola de nuevo, %s! %s ¿En una escala del 1 al 10, cómo te sientes hoy?\n\n", sess.UserName, emoji) +
			"Puedes usar:\n" +
			"- /recursos para opciones de relajación 🤔\n" +
			"- /recordatorio para programar seguimientos ⏰\n" +
			"- /ayuda para ver todos los comandos ⛑️"
	default:
		return fmt.Sprintf("¡Hola, %s! %s ¿En una escala del 1 al 10, cómo te sientes hoy?\n\n", sess.UserName, emoji) +
			"También puedes usar comandos como /recursos o /ayuda 🥺"
	}
}

func nameRegisteredMessage(name string) string {
	return fmt.Sprintf("¡Hola, %s! 😊 ¿En una escala del 1 al 10, cómo te sientes hoy?", name)
}

func stressOfferMessage(userName, insights string) string {
	name := ""
	if userName != "" {
		name = ", " + userName
	}
	return fmt.Sprintf("Entiendo que te sientas estresado/a 😓 %s.\n\n", name) +
		insights + "\n\n_Elige una opción 🥺:_\n" + stressOptionsMenu
}

func stressSupportOffer(initial string) string {
	return initial + "\n\nParece que podrías necesitar apoyo 🥺. Elige una opción:\n" + stressOptionsMenu
}

func scaleEmoji(scale int) string {
	switch {
	case scale >= 7:
		return "😊"
	case scale >= 5:
		return "😐"
	default:
		return "😔"
	}
}

func scaleMessage(scale, positiveStreak int) string {
	emoji := scaleEmoji(scale)
	switch {
	case scale >= 7:
		streak := ""
		if positiveStreak > 3 {
			streak = fmt.Sprintf(" ¡Llevas %d días sintiéndote bien! 🌟", positiveStreak)
		}
		return fmt.Sprintf("¡Me alegra que te sientas bien! %s%s ¿En qué más puedo ayudarte?\n\n", emoji, streak) +
			"Recuerda que puedes usar /recursos cuando lo necesites 😊"
	case scale >= 5:
		return fmt.Sprintf("Entiendo que no te sientas del todo bien %s. ¿Quieres hablar sobre ello?\n\n", emoji) +
			"También puedes probar con /recursos para encontrar ayuda 🥺"
	default:
		return fmt.Sprintf("Veo que estás pasando un momento difícil %s. ¿Te gustaría que te ayude con algún recurso para sentirte mejor?\n\n", emoji) +
			"Puedes elegir:\n" +
			"1. 🌄 Foto relajante\n" +
			"2. 🧘 Video de meditación\n" +
			"3. 🎵 Música relajante\n" +
			"O usar el comando /recursos 🤔"
	}
}

func resourceFoundMessage(rt models.ResourceType, url string) string {
	var text string
	if rt == models.ResourcePhoto {
		text = "Aquí tienes una imagen relajante 🖼️:\n" + url
	} else {
		text = fmt.Sprintf("Aquí tienes un video de %s 🎵:\n%s", resourceTopic(rt), url)
	}
	return text + resourceFeedbackPrompt
}

func resourceNotFoundMessage(rt models.ResourceType) string {
	var what string
	switch rt {
	case models.ResourcePhoto:
		what = "una foto"
	case models.ResourceVideo:
		what = "un video"
	default:
		what = "música"
	}
	return fmt.Sprintf("No pude encontrar %s 😓. ¿Quieres intentar con %s?", what, strings.Join(alternativeLabels(rt), " o "))
}

func followUpConfirmedMessage(hhmm string) string {
	return fmt.Sprintf("✅ Recordatorio configurado para las %s.\n", hhmm) +
		"Te enviaré un mensaje a esta hora cada día para ver cómo estás 😊.\n\n" +
		"¿En qué más puedo ayudarte 🤔?"
}

func weeklyInsightMessage(avg float64, improving bool) string {
	trend := "bajando 📉"
	if improving {
		trend = "mejorando 📈"
	}
	return fmt.Sprintf("\n*Insight semanal 📈:* Tu promedio fue %.1f/10 (%s).", avg, trend)
}

func achievementsMessage(reply string, names []string) string {
	return reply + "\n\n🎉 ¡Logro desbloqueado!: " + strings.Join(names, ", ")
}

func fallbackApologies(userName string) []string {
	return []string{
		fmt.Sprintf("Vaya, tengo dificultades técnicas. ¿Podrías repetirlo, %s?", userName),
		"Estoy teniendo problemas para entender. ¿Podrías reformularlo?",
		"¡Ups! Algo no funcionó. ¿Quieres intentarlo de nuevo?",
	}
}

// FollowUpMessage selects the check-in text for a scheduled follow-up.
func FollowUpMessage(sess *models.Session) string {
	switch {
	case sess.PositiveEmotionStreak > 3:
		return fmt.Sprintf("¡%s, tu racha positiva es impresionante! 🌟 ¿Sigues bien hoy?", sess.UserName)
	case sess.EmotionalScale != nil && *sess.EmotionalScale < 5:
		return fmt.Sprintf("Hola %s, ¿cómo vas con ese ánimo? 😊 ¿Ha mejorado?", sess.UserName)
	default:
		return fmt.Sprintf("Hola %s, ¿cómo te sientes hoy en una escala del 1 al 10? 😊", sess.UserName)
	}
}
