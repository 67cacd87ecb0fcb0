// Package prompt renders PoC generation prompts and post-processes replies.
package prompt

import (
	"fmt"
	"strings"

	"github.com/joshsymonds/pocforge/internal/models"
)

// Languages of generated tests.
const (
	LanguageTypeScript = "typescript"
	LanguageRust       = "rust"
)

// maxDiffLength caps how much of a patch diff is quoted in the prompt.
const maxDiffLength = 4000

// Messages is the system/user prompt pair for one work item.
type Messages struct {
	System string
	User   string
}

// Token is the stable identifier embedded in every artifact for a class.
// It contains no regex metacharacters and never depends on the title.
func Token(classID int) string {
	return fmt.Sprintf("PoC#%d", classID)
}

// NativeTestName is the test function name used for native programs.
func NativeTestName(f models.Finding) string {
	name := f.SafeName()
	if name == "" {
		return fmt.Sprintf("poc_%d", f.ClassID)
	}
	return fmt.Sprintf("poc_%d_%s", f.ClassID, name)
}

// Language returns the language tests are written in for program.
func Language(program models.Program) string {
	if program.IsAnchor() {
		return LanguageTypeScript
	}
	return LanguageRust
}

// RunCommand is the shell command that selects and runs the PoC for f.
func RunCommand(program models.Program, f models.Finding) string {
	if program.IsAnchor() {
		return fmt.Sprintf(`cd <repo> && anchor test -- --grep %q`, Token(f.ClassID))
	}
	return fmt.Sprintf("cd <repo> && cargo test-sbf %s", NativeTestName(f))
}

// Build renders the prompt pair for item.
func Build(program models.Program, item models.WorkItem) Messages {
	return Messages{
		System: systemPrompt(program, item.Finding),
		User:   userPrompt(program, item),
	}
}

func systemPrompt(program models.Program, f models.Finding) string {
	var sb strings.Builder

	sb.WriteString("You are a Solana smart contract security researcher. ")
	sb.WriteString("Your task is to write a proof-of-concept exploit test that demonstrates a reported vulnerability.\n\n")

	sb.WriteString("Rules for the test code:\n")
	if program.IsAnchor() {
		sb.WriteString("- Write a COMPLETE, RUNNABLE Anchor test file (.ts)\n")
		sb.WriteString("- Import from @coral-xyz/anchor and @solana/web3.js\n")
		sb.WriteString("- Use describe/it blocks with Mocha\n")
		sb.WriteString(fmt.Sprintf("- The describe block MUST start with \"%s\", e.g. describe(\"%s: %s\", ...)\n",
			Token(f.ClassID), Token(f.ClassID), f.SafeName()))
	} else {
		sb.WriteString("- Write a COMPLETE, RUNNABLE Rust integration test using solana-program-test\n")
		sb.WriteString(fmt.Sprintf("- The test function MUST be named %s\n", NativeTestName(f)))
		sb.WriteString(fmt.Sprintf("- Mention %s in a comment above the test function\n", Token(f.ClassID)))
	}
	sb.WriteString("- Create realistic account setup (PDAs, token accounts, keypairs)\n")
	sb.WriteString("- Show the EXACT exploit path: what the attacker does, which accounts are passed\n")
	sb.WriteString("- The test should SUCCEED if the vulnerability exists (proving it's exploitable)\n")
	sb.WriteString("- Include comments explaining each step of the exploit\n\n")

	sb.WriteString(fmt.Sprintf("Respond with a single ```%s code block and nothing else.\n", Language(program)))

	return sb.String()
}

func userPrompt(program models.Program, item models.WorkItem) string {
	f := item.Finding
	var sb strings.Builder

	sb.WriteString("## Program\n")
	sb.WriteString(fmt.Sprintf("Name: %s\n", program.Name))
	sb.WriteString(fmt.Sprintf("Framework: %s\n", frameworkName(program)))
	if program.ProgramID != "" {
		sb.WriteString(fmt.Sprintf("Program ID: %s\n", program.ProgramID))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("## Finding (%s)\n", Token(f.ClassID)))
	sb.WriteString(fmt.Sprintf("Title: %s\n", f.Title))
	sb.WriteString(fmt.Sprintf("Class: %s\n", f.ClassName))
	sb.WriteString(fmt.Sprintf("Severity: %s\n", f.Severity))
	sb.WriteString(fmt.Sprintf("Location: %s\n", location(f.Location)))
	if f.Location.Instruction != "" {
		sb.WriteString(fmt.Sprintf("Instruction: %s\n", f.Location.Instruction))
	}
	if f.Description != "" {
		sb.WriteString(fmt.Sprintf("Description: %s\n", f.Description))
	}
	if f.Impact != "" {
		sb.WriteString(fmt.Sprintf("Impact: %s\n", f.Impact))
	}
	sb.WriteString("\n")

	if e := item.Enrichment; e != nil {
		sb.WriteString("## Exploit Analysis\n")
		if e.ExploitScenario != "" {
			sb.WriteString(fmt.Sprintf("Scenario: %s\n", e.ExploitScenario))
		}
		if e.Impact != "" {
			sb.WriteString(fmt.Sprintf("Impact: %s\n", e.Impact))
		}
		writeList(&sb, "Preconditions", e.Preconditions)
		writeList(&sb, "Attack steps", e.AttackSteps)
		sb.WriteString("\n")
	}

	if p := item.Patch; p != nil {
		sb.WriteString("## Proposed Fix\n")
		if p.Description != "" {
			sb.WriteString(p.Description + "\n")
		}
		sb.WriteString("```diff\n")
		sb.WriteString(truncate(p.Diff, maxDiffLength))
		sb.WriteString("\n```\n")
		sb.WriteString("The exploit must work against the UNPATCHED code.\n")
	}

	return sb.String()
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(label + ":\n")
	for i, it := range items {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, it))
	}
}

func location(l models.Location) string {
	if l.File == "" {
		return "unknown"
	}
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

func frameworkName(program models.Program) string {
	if program.IsAnchor() {
		return "Anchor"
	}
	return "native"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "\n... (truncated)"
}
