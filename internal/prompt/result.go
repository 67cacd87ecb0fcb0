package prompt

import (
	"fmt"
	"strings"

	"github.com/joshsymonds/pocforge/internal/models"
)

const fence = "```"

// ExtractCode returns the body of the first fenced code block in text,
// preferring a block tagged with language. Text without a fence is returned trimmed.
func ExtractCode(text, language string) string {
	blocks := fencedBlocks(text)
	if len(blocks) == 0 {
		return strings.TrimSpace(text)
	}
	if language != "" {
		for _, b := range blocks {
			if strings.EqualFold(b.lang, language) || aliasOf(b.lang) == language {
				return b.body
			}
		}
	}
	return blocks[0].body
}

type codeBlock struct {
	lang string
	body string
}

func fencedBlocks(text string) []codeBlock {
	var blocks []codeBlock
	rest := text
	for {
		start := strings.Index(rest, fence)
		if start < 0 {
			return blocks
		}
		rest = rest[start+len(fence):]

		lang := ""
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			lang = strings.TrimSpace(rest[:nl])
			rest = rest[nl+1:]
		}

		end := strings.Index(rest, fence)
		if end < 0 {
			// Unterminated block, usually a reply cut off by max_tokens.
			return append(blocks, codeBlock{lang: lang, body: strings.TrimSpace(rest)})
		}
		blocks = append(blocks, codeBlock{lang: lang, body: strings.TrimSpace(rest[:end])})
		rest = rest[end+len(fence):]
	}
}

func aliasOf(lang string) string {
	switch strings.ToLower(lang) {
	case "ts", "typescript":
		return LanguageTypeScript
	case "rs", "rust":
		return LanguageRust
	default:
		return strings.ToLower(lang)
	}
}

// Fallback builds a minimal scaffold test for f. It carries the same token
// and test name as a generated test so run commands still select it.
func Fallback(program models.Program, f models.Finding) string {
	var sb strings.Builder
	if program.IsAnchor() {
		sb.WriteString("import * as anchor from \"@coral-xyz/anchor\";\n\n")
		sb.WriteString(fmt.Sprintf("describe(%q, () => {\n", fmt.Sprintf("%s: %s", Token(f.ClassID), f.ClassName)))
		sb.WriteString(fmt.Sprintf("  it(%q, async () => {\n", f.Title))
		sb.WriteString(fmt.Sprintf("    // Location: %s\n", singleLine(location(f.Location))))
		sb.WriteString("    // TODO: set up accounts and reproduce the exploit path.\n")
		sb.WriteString("    throw new Error(\"PoC not implemented\");\n")
		sb.WriteString("  });\n")
		sb.WriteString("});\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("// %s: %s\n", Token(f.ClassID), singleLine(f.ClassName)))
	sb.WriteString(fmt.Sprintf("// %s\n", singleLine(f.Title)))
	sb.WriteString(fmt.Sprintf("// Location: %s\n", singleLine(location(f.Location))))
	sb.WriteString("#[tokio::test]\n")
	sb.WriteString(fmt.Sprintf("async fn %s() {\n", NativeTestName(f)))
	sb.WriteString("    // TODO: set up accounts and reproduce the exploit path.\n")
	sb.WriteString("    unimplemented!(\"PoC not implemented\");\n")
	sb.WriteString("}\n")
	return sb.String()
}

// singleLine collapses whitespace, including newlines, so text stays inside a line comment.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
