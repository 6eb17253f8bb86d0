package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/peterh/liner"

	"github.com/opsmind/opsmind/pkg/config"
	"github.com/opsmind/opsmind/pkg/log"
	"github.com/opsmind/opsmind/pkg/opsmind"
	"github.com/opsmind/opsmind/pkg/owner"
)

// Constants for the command-line interface
const (
	cmdHelp     = "!help"
	cmdQuit     = "!quit"
	cmdOwner    = "!owner"
	cmdRemember = "!remember"
	cmdRecall   = "!recall"
	cmdConfig   = "!config"
)

// Command-line help text
const helpText = `
OpsMind - Command Reference:
-----------------------------------------
!help                 - Show this help message
!owner <id>           - Set the current owner ID
!remember <text>      - Store a memory without asking the assistant
!recall <query>       - Show the memories matching a query
!config               - Show current configuration
!quit                 - Exit the application

Notes:
- Regular text input is sent to the assistant as a request
- Tab completion is available for commands
- Use up/down arrows for command history`

// historyFile is the file where command history is stored
const historyFile = ".opsmind_history"

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	stdinMode := flag.Bool("s", false, "Read from stdin and exit when complete")
	flag.Parse()

	// Pick up OPENAI_API_KEY and POSTGRES_URL from a local .env if present
	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	log.Setup(log.Config{
		Level:  log.Level(cfg.Logging.Level),
		Format: log.Format(cfg.Logging.Format),
	})

	log.Info("Starting OpsMind client")

	assistant, err := opsmind.NewFromConfig(cfg)
	if err != nil {
		log.Error("Failed to initialize assistant", "error", err)
		os.Exit(1)
	}

	runCLI(assistant, cfg, *stdinMode)
}

// runCLI starts the command-line interface for user interaction
func runCLI(assistant opsmind.Assistant, cfg *config.Config, stdinMode bool) {
	currentOwner := owner.ID("default-owner")

	if stdinMode {
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("\n=== OpsMind (stdin mode) ===")
		fmt.Println("Memory Store:", cfg.Memory.Type)
		fmt.Printf("Current Owner: %s\n", currentOwner)

		for scanner.Scan() {
			input := strings.TrimSpace(scanner.Text())
			if input == "" || strings.HasPrefix(input, "#") {
				continue
			}
			if input == cmdQuit {
				fmt.Println("Goodbye!")
				return
			}

			fmt.Printf("opsmind::%s> %s\n", currentOwner, input)
			processCommand(input, assistant, cfg, &currentOwner)
		}

		if err := scanner.Err(); err != nil {
			fmt.Printf("Error reading stdin: %v\n", err)
		}
		fmt.Println("Goodbye!")
		return
	}

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(false)
	line.SetCompleter(func(line string) (c []string) {
		commands := []string{cmdHelp, cmdQuit, cmdOwner, cmdRemember, cmdRecall, cmdConfig}
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, line) {
				c = append(c, cmd)
			}
		}
		return
	})

	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("\n=== OpsMind ===")
	fmt.Println("Memory Store:", cfg.Memory.Type)
	fmt.Println("Generation Provider:", cfg.Generation.Provider)
	fmt.Printf("Current Owner: %s\n", currentOwner)
	fmt.Println("Type !help for available commands.")

	for {
		prompt := fmt.Sprintf("opsmind::%s> ", currentOwner)
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nGoodbye!")
				break
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		if input == cmdQuit {
			fmt.Println("Goodbye!")
			break
		}

		processCommand(input, assistant, cfg, &currentOwner)
	}
}

// processCommand handles a single command
func processCommand(input string, assistant opsmind.Assistant, cfg *config.Config, currentOwner *owner.ID) {
	ctx := owner.ContextWithOwnerID(context.Background(), *currentOwner)

	if strings.HasPrefix(input, "!") {
		parts := strings.SplitN(input, " ", 2)

		switch parts[0] {
		case cmdHelp:
			fmt.Println(helpText)

		case cmdOwner:
			if len(parts) == 1 {
				fmt.Printf("Current owner: %s\n", *currentOwner)
			} else {
				*currentOwner = owner.ID(strings.TrimSpace(parts[1]))
				fmt.Printf("Owner set to: %s\n", *currentOwner)
			}

		case cmdRemember:
			if len(parts) == 1 {
				fmt.Println("Memory content required")
				return
			}
			id, err := assistant.Remember(ctx, parts[1])
			if err != nil {
				fmt.Printf("Error storing memory: %v\n", err)
			} else {
				fmt.Printf("Memory stored with ID: %s\n", id)
			}

		case cmdRecall:
			if len(parts) == 1 {
				fmt.Println("Recall query required")
				return
			}
			memories, err := assistant.Recall(ctx, parts[1])
			if err != nil {
				fmt.Printf("Error recalling memories: %v\n", err)
				return
			}
			if len(memories) == 0 {
				fmt.Println("No memories found for the query.")
				return
			}
			fmt.Printf("Found %d memories:\n\n", len(memories))
			for i, m := range memories {
				fmt.Printf("Memory %d [%s]: %s\n", i+1, m.Kind, m.Content)
				if !m.CreatedAt.IsZero() {
					fmt.Printf("  Created: %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
				}
			}

		case cmdConfig:
			fmt.Println("Current configuration:")
			fmt.Printf("  Memory Store:        %s\n", cfg.Memory.Type)
			fmt.Printf("  Retrieval Limit:     %d\n", cfg.Memory.RetrievalLimit)
			fmt.Printf("  Generation Provider: %s\n", cfg.Generation.Provider)
			fmt.Printf("  Model:               %s\n", cfg.Generation.OpenAI.Model)
			fmt.Printf("  Max Retries:         %d\n", cfg.Generation.MaxRetries)

		default:
			fmt.Printf("Unknown command: %s (type !help for commands)\n", parts[0])
		}
		return
	}

	// Plain text goes to the assistant
	answer, err := assistant.Ask(ctx, input)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println(answer.Text)
	for _, warning := range answer.Warnings {
		fmt.Printf("Warning: %s\n", warning)
	}
}
