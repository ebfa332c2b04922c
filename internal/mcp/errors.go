// Package mcp exposes the index and search operations of a project as Model
// Context Protocol tools over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

// MCP error codes. Negative values follow JSON-RPC conventions.
const (
	// ErrCodeIndexUnavailable indicates the index is corrupt or busy.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodeFileNotFound indicates a file no longer exists on disk.
	ErrCodeFileNotFound = -32004

	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var pe *perrors.ProjectError
	if errors.As(err, &pe) {
		return mapProjectError(pe)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

func mapProjectError(pe *perrors.ProjectError) *MCPError {
	message := pe.Message
	if pe.Suggestion != "" {
		message = fmt.Sprintf("%s %s", pe.Message, pe.Suggestion)
	}

	switch pe.Category {
	case perrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case perrors.CategoryIO:
		switch pe.Code {
		case perrors.ErrCodeFileNotFound:
			return &MCPError{Code: ErrCodeFileNotFound, Message: message}
		case perrors.ErrCodeCorruptIndex, perrors.ErrCodeLockTimeout:
			return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
		}
	case perrors.CategoryInternal:
		if pe.Code == perrors.ErrCodeIndexBusy {
			return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
		}
	}
	return &MCPError{Code: ErrCodeInternalError, Message: message}
}
