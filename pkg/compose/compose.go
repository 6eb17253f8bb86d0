// Package compose assembles generation prompts from recalled memories,
// conversation history, and the new user input. Composition is a pure
// function: identical inputs always produce the identical prompt, and
// the template shape is constant — empty sections render empty rather
// than disappearing.
package compose

import (
	"fmt"
	"strings"
)

// promptTemplate is the fixed instruction template. The three %s verbs
// are, in order: memories, chat history, user input.
const promptTemplate = `You are an expert Infrastructure DevOps engineer.
Based on the user's request, provide guidance, solutions, or code samples for infrastructure, CI/CD, cloud services, containerization, or automation tasks.

Relevant past knowledge:
%s

Chat history:
%s

New request from user:
%s

Provide a clear, concise solution with explanations where needed. Include code snippets, commands, or configuration examples when appropriate.`

// Compose merges retrieved memories, conversation history, and the new
// user input into a single prompt. Memories render as bullet lines in
// the order given; retrieval order is preserved, never re-ranked here.
func Compose(memories []string, history string, userInput string) string {
	return fmt.Sprintf(promptTemplate, FormatMemories(memories), history, userInput)
}

// FormatMemories renders memories as "- " bullet lines. An empty slice
// renders as the empty string, keeping the template shape constant.
func FormatMemories(memories []string) string {
	if len(memories) == 0 {
		return ""
	}

	lines := make([]string, len(memories))
	for i, memory := range memories {
		lines[i] = "- " + memory
	}
	return strings.Join(lines, "\n")
}
