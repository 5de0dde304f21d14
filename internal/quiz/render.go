package quiz

import (
	"fmt"
	"strings"

	"github.com/example/theorybot/pkg/models"
)

const (
	msgWelcome = "Welcome to the Driving Theory Bot! 🚗\n\n" +
		"Please choose your preferred language:\n" +
		"1. English\n" +
		"2. Deutsch\n" +
		"3. Mixed\n\n" +
		"Reply with 1, 2, or 3"
	msgLanguagePrompt = "Please reply with 1 (English), 2 (Deutsch), or 3 (Mixed)"
	msgLanguageSet    = "Language set to: %s"
	msgHelp           = "🤖 Available Commands:\n\n" +
		"📊 /stats - View your statistics and current question\n" +
		"🔄 /resend - Resend the current question\n" +
		"⏭️ /skip - Skip the current question\n\n" +
		"Let's start with your first question!"

	msgReviewNotice   = "📚 Time for review! This question is due for spaced repetition."
	msgOptionsPrompt  = "📝 Reply with your answer(s) (e.g., A or AB or A,B or A B)"
	msgFillInPrompt   = "✍️ Type your answer directly (number or text)"
	msgSkipHint       = "⏭️ Use /skip to skip this question"
	msgInvalidAnswer  = "Invalid answer. Please reply with letter(s) like A, BC, or A,B,C\nTry again or type 'skip' to skip this question."
	msgCorrect        = "✅ Correct! Well done!"
	msgIncorrect      = "❌ Incorrect.\nYour answer: %s\nCorrect answer: %s"
	msgExplanation    = "\n\n💡 %s"
	msgRunningStats   = "\n\n📊 Your stats: %d questions, %.1f%% accuracy"
	msgNextIn         = "⏳ Next question in %d seconds..."
	msgNoMore         = "No more questions available."
	msgNoQuestions    = "No questions available. Please check your question files."
	msgSkipped        = "⏭️ Question skipped. Loading next question..."
	msgWaitForNext    = "⏳ Please wait for the next question to be sent before using /skip.\nYou can use /stats to see your progress in the meantime."
	msgNothingToSkip  = "No active question to skip. Use /start to begin."
	msgNothingResend  = "No active question to resend. Use /start to begin a new session."
	msgResuming       = "📚 Resuming your previous session...\nPlease answer the question above or type 'skip' to skip it."
	msgUsage          = "Use /start to begin a new quiz session or /stats to view your statistics."
	msgRateLimited    = "⚠️ Rate limit exceeded. Please wait a moment.\nRemaining capacity: %.1f"
	msgMilestone      = "🎉 Congratulations on answering %d questions!\n\nKeep going, every question brings you closer to passing the exam."
	msgStats          = "📊 Your Statistics:\n\nTotal Questions: %d\nCorrect Answers: %d\nAccuracy: %.1f%%"
	msgWaitingStatus  = "\n⏳ Status: Waiting for next question"
	msgCurrentSession = "\n\n🔄 Current Question: %s\n🌐 Language: %s"
)

// questionText builds the header and body shown with a question
func questionText(q *models.Question, review bool) string {
	var header []string
	if q.ThemeName != "" {
		header = append(header, "📚 "+q.ThemeName)
	}
	if q.ChapterName != "" {
		header = append(header, "📖 "+q.ChapterName)
	}
	if q.ID != "" {
		header = append(header, "🔢 "+q.ID)
	}
	if q.Points != "" {
		header = append(header, "⭐ "+q.Points)
	}
	if review {
		header = append(header, "🔄 Review Question")
	}

	body := "❓ " + q.Text
	if len(header) == 0 {
		return body
	}
	return strings.Join(header, "\n") + "\n\n" + body
}

// answerPrompt lists the options of a multiple-choice question or asks for a typed answer
func answerPrompt(q *models.Question) string {
	if !q.IsMultipleChoice() {
		return msgFillInPrompt + "\n" + msgSkipHint
	}

	var sb strings.Builder
	sb.WriteString("\n")
	for i, option := range q.Options {
		fmt.Fprintf(&sb, "%c. %s\n", 'A'+rune(i), option)
	}
	sb.WriteString("\n" + msgOptionsPrompt)
	sb.WriteString("\n" + msgSkipHint)
	return sb.String()
}

// feedback builds the verdict shown after an answer
func feedback(q *models.Question, correct bool, given, expected string, stats models.Statistics) string {
	var sb strings.Builder
	if correct {
		sb.WriteString(msgCorrect)
	} else {
		fmt.Fprintf(&sb, msgIncorrect, given, expected)
	}
	if q.Explanation != "" {
		fmt.Fprintf(&sb, msgExplanation, q.Explanation)
	}
	fmt.Fprintf(&sb, msgRunningStats, stats.TotalAttempts, stats.AccuracyPercent)
	return sb.String()
}

// currentQuestionInfo describes the question held in memory for /stats
func currentQuestionInfo(q *models.Question, waiting bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n\n🔄 Current Question: %s", q.ID)
	if q.ThemeName != "" {
		fmt.Fprintf(&sb, "\n📚 Theme: %s", q.ThemeName)
	}
	if q.ChapterName != "" {
		fmt.Fprintf(&sb, "\n📖 Chapter: %s", q.ChapterName)
	}
	if q.Points != "" {
		fmt.Fprintf(&sb, "\n⭐ Points: %s", q.Points)
	}
	if waiting {
		sb.WriteString(msgWaitingStatus)
	}
	return sb.String()
}
