package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/llm"
)

var amountPrinter = message.NewPrinter(language.English)

// SystemPrompt renders the facts and tutoring instructions, followed by a
// directive to answer in the language named by languageCode.
func SystemPrompt(f *Facts, languageCode string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the friendly AI assistant of %s", f.School.Name)
	if f.School.Location != "" {
		fmt.Fprintf(&b, " (%s)", f.School.Location)
	}
	b.WriteString(". You help parents, prospective students and current students with questions about the school, and you tutor students in their subjects.\n")
	if f.School.Motto != "" {
		fmt.Fprintf(&b, "School motto: %s.\n", f.School.Motto)
	}
	writeList(&b, "Levels offered", f.School.Levels)

	b.WriteString("\nCONTACT INFORMATION:\n")
	writeField(&b, "Phone", f.Contact.Phone)
	writeField(&b, "WhatsApp", f.Contact.WhatsApp)
	writeField(&b, "Email", f.Contact.Email)
	writeField(&b, "Admissions email", f.Contact.AdmissionsEmail)
	writeField(&b, "Office hours", f.Contact.OfficeHours)

	if len(f.Fees) > 0 {
		b.WriteString("\nFEE STRUCTURE:\n")
		for _, fee := range f.Fees {
			fmt.Fprintf(&b, "- %s: %s %s %s\n", fee.Level, fee.Currency, amountPrinter.Sprintf("%d", fee.Amount), fee.Term)
		}
	}

	b.WriteString("\nADMISSION REQUIREMENTS:\n")
	for _, r := range f.Admission.Requirements {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	writeField(&b, "Application fee", f.Admission.ApplicationFee)
	writeField(&b, "Intake", f.Admission.Intake)

	if len(f.Staff) > 0 {
		b.WriteString("\nSTAFF:\n")
		for _, s := range f.Staff {
			fmt.Fprintf(&b, "- %s: %s\n", s.Role, s.Name)
		}
	}

	if len(f.Scholarships) > 0 {
		b.WriteString("\nSCHOLARSHIPS:\n")
		for _, s := range f.Scholarships {
			fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Rule)
		}
	}

	writeList(&b, "\nFACILITIES", f.Facilities.Items)

	b.WriteString("\nTUTORING INSTRUCTIONS:\n")
	for _, g := range f.Tutoring.Guidelines {
		fmt.Fprintf(&b, "- %s\n", g)
	}
	b.WriteString("- Only state school facts listed above. Do not invent fees, names or dates.\n")

	fmt.Fprintf(&b, "\nIMPORTANT: Always respond in %s.", llm.LanguageName(languageCode))

	return b.String()
}

// ImagePrompt builds the instruction for an image+text generation call from the
// user's raw request.
func ImagePrompt(request, languageCode string) string {
	lang := llm.LanguageName(languageCode)
	return fmt.Sprintf(
		"Create a clear, labeled, educational illustration suitable for a school student. "+
			"Request: %s. Use a clean style with readable labels. "+
			"Also provide a short explanation of the illustration in %s.",
		request, lang,
	)
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", name, value)
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", title, strings.Join(items, "; "))
}
