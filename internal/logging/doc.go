// Package logging sets up structured JSON logging with size-based rotation.
//
// Logs go to <project>/.ai/projectmind.log. In MCP mode nothing is written to
// stdout or stderr, since stdout carries the JSON-RPC stream.
package logging
