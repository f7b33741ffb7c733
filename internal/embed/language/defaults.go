package language

import "strings"

// defaultReferences are the framework libraries attached to both built-in
// kinds.
var defaultReferences = []string{
	"mscorlib",
	"System",
	"System.Core",
	"System.Data",
	"System.Net.Http",
	"System.Net.Http.WebRequest",
	"System.Xml.Linq",
	"System.Web",
	"System.Windows.Forms",
	"WindowsBase",
	"PresentationCore",
	"PresentationFramework",
}

// defaultNamespaces are imported implicitly into every snippet.
var defaultNamespaces = []string{
	"System",
	"System.Collections.Generic",
	"System.Data",
	"System.IO",
	"System.Linq",
	"System.Net",
	"System.Net.Http",
	"System.Net.Http.Formatting",
	"System.Reflection",
	"System.Text",
	"System.Threading",
	"System.Threading.Tasks",
	"System.Xml",
	"System.Xml.Linq",
}

func importBlock(format string) string {
	var sb strings.Builder
	for _, ns := range defaultNamespaces {
		sb.WriteString(strings.Replace(format, "%s", ns, 1))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// CSharp is the built-in primary profile.
func CSharp() Profile {
	return Profile{
		Kind:           Primary,
		ID:             "csharp",
		Name:           "C#",
		Discriminators: []string{"CSharp"},
		GlobalPrefix:   importBlock("using %s;"),
		References:     append([]string(nil), defaultReferences...),
		LineComment:    "//",
	}
}

// VisualBasic is the built-in secondary profile.
func VisualBasic() Profile {
	return Profile{
		Kind:           Secondary,
		ID:             "vb",
		Name:           "Visual Basic",
		Discriminators: []string{"Basic"},
		GlobalPrefix:   importBlock("Imports %s"),
		References:     append([]string(nil), defaultReferences...),
		LineComment:    "'",
	}
}

// DefaultTable returns the table of built-in profiles.
func DefaultTable() *Table {
	t, err := NewTable(CSharp(), VisualBasic())
	if err != nil {
		panic(err)
	}
	return t
}
