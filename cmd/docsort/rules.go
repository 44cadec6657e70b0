package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/docsort/docsort/internal/cli"
	"github.com/docsort/docsort/internal/config"
	"github.com/docsort/docsort/internal/rule"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Work with the classification rule file",
	}

	cmd.AddCommand(rulesValidateCmd())

	return cmd
}

func rulesValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [rules.yaml]",
		Short: "Check a rule file for errors",
		Long: `Parse the rule file and report every problem at once: duplicate
names, unknown operators, broken regular expressions, and empty value
lists. With no argument the configured rules file is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRulesValidate,
	}
	return cmd
}

func runRulesValidate(_ *cobra.Command, args []string) error {
	path := viper.GetString("rules.path")
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no rules file configured or given")
	}

	rules, err := config.LoadRules(path)
	if err != nil {
		return err
	}

	problems := rule.ValidateRules(rules)
	if len(problems) == 0 {
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("%d rules OK.", len(rules))))
		return nil
	}

	for _, p := range problems {
		fmt.Println(cli.FormatError(p.Error()))
	}
	return fmt.Errorf("%d problems found in %s", len(problems), path)
}
