// Package configs embeds the files written by `projectmind init`.
package configs

import _ "embed"

// ProjectConfigTemplate is written to .projectmind.yaml in the project root.
// Every key is commented out so the built-in defaults stay in effect until
// edited.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// IndexIgnoreTemplate is written to .ai/.indexignore. Each line is a path
// substring excluded from indexing.
//
//go:embed indexignore.example
var IndexIgnoreTemplate string
