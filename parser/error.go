package parser

import "fmt"

// SyntaxError is the parser's error kind: a message plus the offending
// token's position.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func CreateSyntaxError(line, column int, message string) SyntaxError {
	return SyntaxError{Line: line, Column: column, Message: message}
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("💥 Syntax error:\nline:%d, column:%d - %s", e.Line, e.Column, e.Message)
}
