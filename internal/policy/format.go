package policy

import (
	"regexp"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

var multipleBlankLines = regexp.MustCompile(`\n{3,}`)
var blankLineAfterOpenBrace = regexp.MustCompile(`\{\n\s*\n`)
var blankLineBeforeCloseBrace = regexp.MustCompile(`\n\s*\n(\s*\})`)

// FormatHCL rewrites policy source in canonical HCL style. It works on
// partial or invalid input, so it never fails.
func FormatHCL(src []byte) []byte {
	formatted := string(hclwrite.Format(src))
	formatted = multipleBlankLines.ReplaceAllString(formatted, "\n\n")
	formatted = blankLineAfterOpenBrace.ReplaceAllString(formatted, "{\n")
	formatted = blankLineBeforeCloseBrace.ReplaceAllString(formatted, "\n${1}")
	return []byte(formatted)
}

// Encode renders p as a policy file that Parse reads back to p.
func Encode(p Policy) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	fb := body.AppendNewBlock("formatter", nil).Body()
	fb.SetAttributeValue("command", cty.StringVal(p.Formatter.Command))
	if len(p.Formatter.Args) > 0 {
		fb.SetAttributeValue("args", stringList(p.Formatter.Args))
	}
	body.AppendNewline()

	body.SetAttributeValue("dirs", stringList(p.Dirs))
	body.SetAttributeValue("ignore", stringList(p.Ignore))
	body.SetAttributeValue("marker", cty.StringVal(p.Marker))
	body.SetAttributeValue("jobs", cty.NumberIntVal(int64(p.Jobs)))

	return FormatHCL(f.Bytes())
}
