package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kbukum/streamkit/workflow"
)

type workflowOptions struct {
	baseURL      string
	apiKey       string
	id           string
	user         string
	conversation string
	inputs       map[string]string
	timeout      time.Duration
	chat         bool
	verbose      bool
}

func (o *workflowOptions) register(f *pflag.FlagSet) {
	f.StringVar(&o.baseURL, "base-url", "", "API base URL")
	f.StringVar(&o.apiKey, "api-key", "", "API key sent as bearer token")
	f.StringVar(&o.id, "id", "", "run this workflow id instead of the app default")
	f.StringVar(&o.user, "user", "", "end-user identifier")
	f.StringVar(&o.conversation, "conversation", "", "chat conversation id")
	f.StringToStringVarP(&o.inputs, "input", "i", nil, "workflow input KEY=VALUE (repeatable)")
	f.DurationVar(&o.timeout, "timeout", 0, "longest gap allowed between reads")
	f.BoolVar(&o.chat, "chat", false, "send as a chat message")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "print node events")
}

func (o *workflowOptions) apply(f *pflag.FlagSet, cfg *workflow.Config) {
	if f.Changed("base-url") {
		cfg.BaseURL = o.baseURL
	}
	if f.Changed("api-key") {
		cfg.APIKey = o.apiKey
	}
	if f.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
}

func (o *workflowOptions) params(query string) workflow.Params {
	p := workflow.Params{
		Query:          query,
		User:           o.user,
		ConversationID: o.conversation,
	}
	if len(o.inputs) > 0 {
		p.Inputs = make(map[string]any, len(o.inputs))
		for k, v := range o.inputs {
			p.Inputs[k] = v
		}
	}
	return p
}

func newWorkflowCommand(a *app) *cobra.Command {
	o := &workflowOptions{}
	cmd := &cobra.Command{
		Use:   "workflow <query>",
		Short: "Run a workflow stream and print the answer",
		Long: `workflow posts query to a workflow API, streams the chunked-JSON
response and prints the answer text as it arrives.

Example:
  streamkit workflow "summarize the release notes"
  streamkit workflow --chat --conversation c-1 "and the open issues?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWorkflow(cmd, strings.Join(args, " "), o)
		},
	}
	o.register(cmd.Flags())
	return cmd
}

func (a *app) runWorkflow(cmd *cobra.Command, query string, o *workflowOptions) error {
	cfg := a.cfg.Workflow
	o.apply(cmd.Flags(), &cfg)

	client, err := workflow.NewClient(cfg, workflow.WithClientLogger(a.log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := a.printer(cmd).workflowHandlers(o.verbose)
	p := o.params(query)
	switch {
	case o.chat:
		_, err = client.ChatStream(ctx, p, h)
	case o.id != "":
		_, err = client.RunByIDStream(ctx, o.id, p, h)
	default:
		_, err = client.RunStream(ctx, p, h)
	}
	return err
}
