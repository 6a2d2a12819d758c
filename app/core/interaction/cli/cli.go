package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"taskmaster/app/core/assistant"
)

// REPL is a line-oriented front end for the assistant. When a proposal needs
// confirmation it holds the pending action until the user answers yes or no.
type REPL struct {
	service *assistant.Service
	ownerID int64

	in  io.Reader
	out io.Writer
}

func NewREPL(service *assistant.Service, ownerID int64) *REPL {
	if ownerID <= 0 {
		ownerID = 1
	}
	return &REPL{service: service, ownerID: ownerID, in: os.Stdin, out: os.Stdout}
}

func (r *REPL) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	fmt.Fprintln(r.out, ">> Taskmaster assistant. Type 'exit' to quit.")

	var pending *assistant.ChatResponse
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if pending != nil {
			fmt.Fprint(r.out, "confirm (yes/no)> ")
		} else {
			fmt.Fprint(r.out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			fmt.Fprintln(r.out, "Bye.")
			return nil
		}

		if pending != nil {
			staged := pending
			pending = nil
			switch strings.ToLower(text) {
			case "y", "yes":
				result := r.service.Confirm(ctx, staged.Action, staged.Data, r.ownerID)
				fmt.Fprintf(r.out, "[assistant]: %s\n", result.Message)
			case "n", "no":
				fmt.Fprintln(r.out, "[assistant]: Okay, I won't do that.")
			default:
				fmt.Fprintln(r.out, "[assistant]: Please answer yes or no.")
				pending = staged
			}
			continue
		}

		resp := r.service.Chat(ctx, text, r.ownerID)
		fmt.Fprintf(r.out, "[assistant]: %s\n", resp.Message)
		if resp.ConfirmationNeeded {
			pending = &resp
		}
	}
}
