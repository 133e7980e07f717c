package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"flexone/internal/api"
)

func newChatCommand(ctx *commandContext) *cobra.Command {
	var details bool
	var jsonOut bool
	var model string
	var temperature float64
	var maxTokens int

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a one-shot chat message to the backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			message := strings.TrimSpace(strings.Join(args, " "))
			if message == "" {
				return fmt.Errorf("message is required")
			}

			client := api.NewClient(cfg.BackendURL())
			stdout := cmd.OutOrStdout()

			if !details {
				reply, err := client.Chat(cmd.Context(), message)
				if err != nil {
					return withBackendHint(err)
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), api.ChatReply{Reply: reply})
				}
				fmt.Fprintln(stdout, reply)
				return nil
			}

			req := api.ChatDetailsRequest{
				Messages: []api.ChatMessage{{Role: api.RoleUser, Content: message}},
			}
			if value := strings.TrimSpace(model); value != "" {
				req.Model = value
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &temperature
			}
			if cmd.Flags().Changed("max-tokens") {
				req.MaxTokens = &maxTokens
			}

			resp, err := client.ChatDetails(cmd.Context(), req)
			if err != nil {
				return withBackendHint(err)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(stdout, resp.Response)
			fmt.Fprintln(stdout)
			fmt.Fprintf(stdout, "Model:  %s\n", resp.Model)
			fmt.Fprintf(stdout, "Tokens: %d prompt, %d completion, %d total\n",
				resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
			return nil
		},
	}

	cmd.Flags().BoolVar(&details, "details", false, "Use the detailed chat endpoint and report model and token usage")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the raw response as JSON")
	cmd.Flags().StringVar(&model, "model", "", "Model override for --details requests")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Temperature override for --details requests")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Max token override for --details requests")
	return cmd
}
