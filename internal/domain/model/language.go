package model

import (
	"path"
	"strings"
)

// UnknownLanguage is reported for extensions outside the language map.
const UnknownLanguage = "Unknown"

// languagesByExtension maps lower-cased file extensions to display languages.
var languagesByExtension = map[string]string{
	".js":     "JavaScript",
	".jsx":    "JavaScript",
	".mjs":    "JavaScript",
	".cjs":    "JavaScript",
	".ts":     "TypeScript",
	".tsx":    "TypeScript",
	".py":     "Python",
	".java":   "Java",
	".go":     "Go",
	".rb":     "Ruby",
	".php":    "PHP",
	".cs":     "C#",
	".cpp":    "C++",
	".cc":     "C++",
	".c":      "C",
	".h":      "C",
	".rs":     "Rust",
	".kt":     "Kotlin",
	".swift":  "Swift",
	".scala":  "Scala",
	".vue":    "Vue",
	".svelte": "Svelte",
	".json":   "JSON",
	".md":     "Markdown",
	".yml":    "YAML",
	".yaml":   "YAML",
	".css":    "CSS",
	".scss":   "SCSS",
	".html":   "HTML",
	".sh":     "Shell",
	".sql":    "SQL",
}

// testableExtensions is the allow-list of extensions eligible for test generation.
// Data and markup formats are recognised above but never catalogued.
var testableExtensions = map[string]bool{
	".js":     true,
	".jsx":    true,
	".mjs":    true,
	".cjs":    true,
	".ts":     true,
	".tsx":    true,
	".py":     true,
	".java":   true,
	".go":     true,
	".rb":     true,
	".php":    true,
	".cs":     true,
	".cpp":    true,
	".cc":     true,
	".c":      true,
	".rs":     true,
	".kt":     true,
	".swift":  true,
	".scala":  true,
	".vue":    true,
	".svelte": true,
}

// Extension returns the lower-cased extension of p including the dot, or "".
func Extension(p string) string {
	return strings.ToLower(path.Ext(p))
}

// DetectLanguage returns the language implied by the extension of p, or
// UnknownLanguage.
func DetectLanguage(p string) string {
	if lang, ok := languagesByExtension[Extension(p)]; ok {
		return lang
	}
	return UnknownLanguage
}

// IsTestable reports whether p has an extension on the testable allow-list.
func IsTestable(p string) bool {
	return testableExtensions[Extension(p)]
}

// TrimExtension strips the extension from p: "src/foo.ts" becomes "src/foo".
func TrimExtension(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}

// TestFilePath returns the conventional path of the test file for a source
// file: "src/foo.ts" becomes "src/foo.test.ts".
func TestFilePath(p string) string {
	ext := path.Ext(p)
	if ext == "" {
		return p + ".test"
	}
	return TrimExtension(p) + ".test" + ext
}
