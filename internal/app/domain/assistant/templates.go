package assistant

import (
	"fmt"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// Fallback templates, one per (context, language). They are deliberately
// plain: when the LLM is down the user still gets a correct message in the
// right language.
var fallbackTemplates = map[MessageContext]map[string]string{
	ContextGateFail: {
		models.LangEnglish: "I can only help with restaurant and food searches. Try asking about somewhere to eat.",
		models.LangHebrew:  "אני יכול לעזור רק בחיפוש מסעדות ואוכל. נסו לשאול על מקום לאכול בו.",
		models.LangSpanish: "Solo puedo ayudar con búsquedas de restaurantes y comida. Prueba a preguntar por un lugar para comer.",
		models.LangRussian: "Я могу помочь только с поиском ресторанов и еды. Попробуйте спросить, где поесть.",
		models.LangArabic:  "يمكنني المساعدة فقط في البحث عن المطاعم والطعام. جرب أن تسأل عن مكان للأكل.",
		models.LangFrench:  "Je ne peux aider qu'avec la recherche de restaurants. Essayez de demander un endroit où manger.",
	},
	ContextClarify: {
		models.LangEnglish: "Could you tell me a bit more about what you feel like eating?",
		models.LangHebrew:  "אפשר לפרט קצת יותר מה בא לכם לאכול?",
		models.LangSpanish: "¿Podrías contarme un poco más sobre qué te apetece comer?",
		models.LangRussian: "Не могли бы вы уточнить, что именно вам хочется съесть?",
		models.LangArabic:  "هل يمكنك إخباري أكثر عما تودّ أن تأكل؟",
		models.LangFrench:  "Pouvez-vous préciser ce que vous avez envie de manger ?",
	},
	ContextSummary: {
		models.LangEnglish: "Found %d places for you.",
		models.LangHebrew:  "מצאתי עבורכם %d מקומות.",
		models.LangSpanish: "Encontré %d lugares para ti.",
		models.LangRussian: "Нашёл для вас %d мест.",
		models.LangArabic:  "وجدت لك %d أماكن.",
		models.LangFrench:  "J'ai trouvé %d endroits pour vous.",
	},
	ContextSearchFailed: {
		models.LangEnglish: "Something went wrong with the search. Please try again in a moment.",
		models.LangHebrew:  "משהו השתבש בחיפוש. נסו שוב בעוד רגע.",
		models.LangSpanish: "Algo salió mal con la búsqueda. Inténtalo de nuevo en un momento.",
		models.LangRussian: "Что-то пошло не так с поиском. Попробуйте ещё раз через минуту.",
		models.LangArabic:  "حدث خطأ ما في البحث. حاول مرة أخرى بعد قليل.",
		models.LangFrench:  "La recherche a rencontré un problème. Réessayez dans un instant.",
	},
	ContextGenericNarration: {
		models.LangEnglish: "Here are some good options to eat near you.",
		models.LangHebrew:  "הנה כמה אפשרויות טובות לאכול לידכם.",
		models.LangSpanish: "Aquí tienes algunas buenas opciones para comer cerca de ti.",
		models.LangRussian: "Вот несколько хороших вариантов поесть рядом с вами.",
		models.LangArabic:  "إليك بعض الخيارات الجيدة للأكل بالقرب منك.",
		models.LangFrench:  "Voici quelques bonnes options pour manger près de chez vous.",
	},
}

func fallbackText(req Request) string {
	templates := fallbackTemplates[req.Context]
	text, ok := templates[req.Language]
	if !ok {
		text = templates[models.LangEnglish]
	}
	if req.Context == ContextSummary {
		return fmt.Sprintf(text, req.ResultCount)
	}
	return text
}
