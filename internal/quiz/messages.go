package quiz

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var englishMessages = map[Code]string{
	CodeMissingUser:            "User doesn't exist",
	CodeMissingQuiz:            "Quiz doesn't exist",
	CodeNotAQuiz:               "Module was not a quiz",
	CodeUserNotEnrolled:        "User not enrolled in course",
	CodeInvalidQuestionType:    "Unsupported question type",
	CodeInvalidQuestionContent: "Invalid question content. Only raw text content is supported",
	CodeNotSinglePage:          "Quiz must be a single page. Multiple pages are not supported.",
}

func init() {
	for code, msg := range englishMessages {
		if err := message.SetString(language.English, messageKey(code), msg); err != nil {
			panic(err)
		}
	}
}

func messageKey(c Code) string { return "error:validation:" + string(c) }

// Message returns the localised text for a validation code. accept is an
// Accept-Language style preference list; unknown languages fall back to English.
func Message(c Code, accept ...string) string {
	tag := message.MatchLanguage(accept...)
	return message.NewPrinter(tag).Sprintf(messageKey(c))
}
