// Package scanner discovers indexable files in a project tree.
// It skips ignored directories, binary and sensitive files, oversized files
// and any path containing a user ignore pattern.
package scanner

import "strings"

// DefaultMaxFileSize is the default maximum file size (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// DefaultIgnoredDirs are directory names never descended into.
// Entries containing '*' are matched as globs against the directory name.
var DefaultIgnoredDirs = []string{
	".git",
	"node_modules",
	".ai",
	"venv",
	".venv",
	"__pycache__",
	".idea",
	".vscode",
	"dist",
	"build",
	".pytest_cache",
	".mypy_cache",
	".ruff_cache",
	"htmlcov",
	".coverage",
	".tox",
	"*.egg-info",
}

// binaryExtensions are never read.
var binaryExtensions = setOf(
	".pyc", ".pyo", ".pyd", ".so", ".dll", ".class", ".exe", ".bin", ".obj",
	".o", ".a", ".lib", ".dylib",
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".ico", ".svg",
	".mp4", ".mp3", ".wav", ".avi", ".mov",
	".pdf", ".zip", ".tar", ".gz", ".rar", ".7z",
)

// codeExtensions and textExtensions together form the indexable set.
// Files without an extension are also indexable.
var codeExtensions = setOf(
	".py", ".js", ".ts", ".jsx", ".tsx", ".java", ".c", ".cpp", ".h", ".hpp",
	".cs", ".go", ".rs", ".rb", ".php", ".swift", ".kt", ".scala", ".r", ".m",
	".mm", ".sh", ".bash", ".zsh", ".fish",
)

var textExtensions = setOf(
	".txt", ".md", ".rst", ".json", ".yaml", ".yml", ".toml", ".xml", ".html",
	".css", ".scss", ".sass", ".sql", ".graphql", ".proto",
)

// Sensitive file patterns that are never indexed.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}

// languageMap maps extensions to a language label for display.
var languageMap = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".zsh":   "shell",
	".md":    "markdown",
	".rst":   "rst",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".sql":   "sql",
	".html":  "html",
	".css":   "css",
	".proto": "protobuf",
}

// IsIndexableExtension reports whether ext (with the dot) may be indexed.
func IsIndexableExtension(ext string) bool {
	if ext == "" {
		return true
	}
	if _, ok := binaryExtensions[ext]; ok {
		return false
	}
	_, code := codeExtensions[ext]
	_, text := textExtensions[ext]
	return code || text
}

// DetectLanguage returns a language label for path, or "".
func DetectLanguage(path string) string {
	return languageMap[strings.ToLower(extension(path))]
}

// extension returns the file extension from a path (including the dot).
// A leading dot in the base name is not an extension.
func extension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			if i == 0 || path[i-1] == '/' || path[i-1] == '\\' {
				return ""
			}
			return path[i:]
		case '/', '\\':
			return ""
		}
	}
	return ""
}

func setOf(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}
