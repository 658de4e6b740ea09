// Package prompt renders ledger snapshots into the text prompts sent to the
// advice model. Rendering is deterministic: the current date is an argument.
package prompt

import (
	"embed"
	"strings"
	"text/template"
	"time"

	"smartbudget/internal/aggregate"
	"smartbudget/internal/core"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// NoDate is printed in debt lines without a due date.
const NoDate = "N/A"

type summaryView struct {
	Today         string
	TotalExpenses string
	TotalDebt     string
	Categories    string
	Debts         string
	Goals         string
}

type chatView struct {
	summaryView
	History string
	Query   string
}

// BuildAnalysisPrompt renders the financial analysis prompt.
func BuildAnalysisPrompt(ledger core.Ledger, today time.Time) string {
	return render("analysis.tmpl", summarize(ledger, today))
}

// BuildChatPrompt renders a chat prompt with the whole history in order.
// Trimming the history, if wanted, is the caller's job.
func BuildChatPrompt(query string, ledger core.Ledger, history []core.ConversationTurn, today time.Time) string {
	return render("chat.tmpl", chatView{
		summaryView: summarize(ledger, today),
		History:     HistoryBlock(history),
		Query:       query,
	})
}

// BuildCategoryPrompt renders the classification prompt for one expense description.
func BuildCategoryPrompt(description string) string {
	return render("category.tmpl", struct {
		Description string
		Labels      string
	}{
		Description: strings.TrimSpace(description),
		Labels:      strings.Join(core.Categories(), ", "),
	})
}

func summarize(ledger core.Ledger, today time.Time) summaryView {
	return summaryView{
		Today:         core.FormatDay(today),
		TotalExpenses: core.FormatKES(aggregate.TotalExpenses(ledger.Expenses)),
		TotalDebt:     core.FormatKES(aggregate.TotalDebt(ledger.Debts)),
		Categories:    CategoryBlock(aggregate.SpendingByCategory(ledger.Expenses)),
		Debts:         DebtBlock(ledger.Debts),
		Goals:         GoalBlock(ledger.Goals),
	}
}

// CategoryBlock renders "<category>: <amount> KES" entries joined by ", ".
func CategoryBlock(spend core.CategorySpend) string {
	sorted := aggregate.Sorted(spend)
	parts := make([]string, 0, len(sorted))
	for _, c := range sorted {
		parts = append(parts, c.Name+": "+core.FormatKES(c.Amount))
	}
	return strings.Join(parts, ", ")
}

// DebtBlock renders one line per debt in input order.
func DebtBlock(debts []core.Debt) string {
	lines := make([]string, 0, len(debts))
	for _, d := range debts {
		lines = append(lines, d.Description+": "+core.FormatKES(d.TotalAmount)+" due "+core.FormatDate(d.DueDate, NoDate))
	}
	return strings.Join(lines, "\n")
}

// GoalBlock renders one line per goal; the date clause is left out when there is no target date.
func GoalBlock(goals []core.Goal) string {
	lines := make([]string, 0, len(goals))
	for _, g := range goals {
		line := g.Description + ": " + core.FormatKES(g.TargetAmount)
		if !g.TargetDate.IsEmpty() {
			line += " by " + core.FormatDate(g.TargetDate, "")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// HistoryBlock renders turns as "User: ...\nAI: ..." pairs.
func HistoryBlock(history []core.ConversationTurn) string {
	lines := make([]string, 0, len(history))
	for _, t := range history {
		lines = append(lines, "User: "+t.Query+"\nAI: "+t.Response)
	}
	return strings.Join(lines, "\n")
}

func render(name string, data any) string {
	var b strings.Builder
	// Templates are parsed at init and the views only hold strings.
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		panic("prompt: render " + name + ": " + err.Error())
	}
	return b.String()
}
