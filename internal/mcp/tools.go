package mcp

// IndexCodebaseInput defines the input schema for the index_codebase tool.
type IndexCodebaseInput struct {
	Force bool `json:"force,omitempty" jsonschema:"clear the index before rebuilding it"`
}

// IndexChangedInput defines the input schema for the index_changed_files tool (no parameters).
type IndexChangedInput struct{}

// SearchInput defines the input schema for the search_codebase tool.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"natural language or code query"`
	NResults int    `json:"n_results,omitempty" jsonschema:"number of results between 1 and 50, default 5"`
}

// AdvancedSearchInput defines the input schema for the search_codebase_advanced tool.
type AdvancedSearchInput struct {
	Query        string   `json:"query" jsonschema:"natural language or code query"`
	NResults     int      `json:"n_results,omitempty" jsonschema:"number of results between 1 and 50, default 5"`
	FileTypes    []string `json:"file_types,omitempty" jsonschema:"only return files with these extensions, e.g. .go"`
	ExcludeDirs  []string `json:"exclude_dirs,omitempty" jsonschema:"skip sources whose path contains any of these"`
	MinRelevance float64  `json:"min_relevance,omitempty" jsonschema:"minimum relevance between 0 and 1"`
}

// StatsInput defines the input schema for the stats tools (no parameters).
type StatsInput struct{}

// ReadMemoryInput defines the input schema for the read_memory tool.
type ReadMemoryInput struct {
	MaxLines *int `json:"max_lines,omitempty" jsonschema:"number of lines to return, default 100"`
	Full     bool `json:"full,omitempty" jsonschema:"return the whole memory and ignore max_lines"`
}

// UpdateMemoryInput defines the input schema for the update_memory tool.
type UpdateMemoryInput struct {
	Content string `json:"content" jsonschema:"markdown to append"`
	Section string `json:"section,omitempty" jsonschema:"label for the update, default Recent Decisions"`
}

// ClearMemoryInput defines the input schema for the clear_memory tool.
type ClearMemoryInput struct {
	KeepTemplate *bool `json:"keep_template,omitempty" jsonschema:"write the empty template back, default true"`
}

// DeleteMemorySectionInput defines the input schema for the delete_memory_section tool.
type DeleteMemorySectionInput struct {
	SectionName string `json:"section_name" jsonschema:"case-insensitive text matched against section headings"`
}

// SaveMemoryVersionInput defines the input schema for the save_memory_version tool.
type SaveMemoryVersionInput struct {
	Description string `json:"description,omitempty" jsonschema:"note stored with the version"`
}

// ListMemoryVersionsInput defines the input schema for the list_memory_versions tool (no parameters).
type ListMemoryVersionsInput struct{}

// RestoreMemoryVersionInput defines the input schema for the restore_memory_version tool.
type RestoreMemoryVersionInput struct {
	Timestamp string `json:"timestamp" jsonschema:"version id as shown by list_memory_versions"`
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{
		Name:        "index_codebase",
		Description: "Index the project so it can be searched. Every indexable file is re-read and re-embedded; removed files are dropped. Set force to clear the index first and rebuild it from scratch.",
	},
	{
		Name:        "index_changed_files",
		Description: "Index only files added, modified or deleted since the last run. Cheap to call before searching.",
	},
	{
		Name:        "search_codebase",
		Description: "Semantic search over the indexed project. Returns the closest chunks with their source file.",
	},
	{
		Name:        "search_codebase_advanced",
		Description: "Semantic search with relevance scores. Filter by file extension, excluded directories and a minimum relevance.",
	},
	{
		Name:        "get_index_stats",
		Description: "Report how many chunks and files are indexed and when the index last ran.",
	},
	{
		Name:        "get_cache_stats",
		Description: "Report hit rates and sizes of the file and query caches.",
	},
	{
		Name:        "read_memory",
		Description: "Read the project memory, a markdown file of status notes and decisions. Returns the first 100 lines unless max_lines or full is set.",
	},
	{
		Name:        "update_memory",
		Description: "Append a note to the project memory under an Update heading.",
	},
	{
		Name:        "clear_memory",
		Description: "Erase the project memory. The empty template is kept unless keep_template is false.",
	},
	{
		Name:        "delete_memory_section",
		Description: "Remove every memory section whose heading contains section_name, including its subsections.",
	},
	{
		Name:        "save_memory_version",
		Description: "Save a copy of the current project memory that can be restored later.",
	},
	{
		Name:        "list_memory_versions",
		Description: "List saved memory versions, newest first.",
	},
	{
		Name:        "restore_memory_version",
		Description: "Replace the project memory with a saved version. The current memory is saved first.",
	},
}
