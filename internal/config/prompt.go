package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptMissingKeys asks for the OpenAI API key on the terminal when it was not
// supplied through the environment. Speech always runs against OpenAI, so the
// key is required regardless of the chat provider.
func PromptMissingKeys(cfg *Config, in *os.File, out io.Writer) error {
	if cfg.LLM.OpenAI.APIKey != "" {
		return nil
	}

	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("OPENAI_API_KEY is not set and stdin is not a terminal")
	}

	fmt.Fprint(out, "Enter your OpenAI API key: ")
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}

	return applyKey(cfg, string(key))
}

func applyKey(cfg *Config, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("empty API key")
	}
	cfg.LLM.OpenAI.APIKey = key
	return os.Setenv("OPENAI_API_KEY", key)
}
