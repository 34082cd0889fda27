// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-cryptobox.
//
// go-cryptobox is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// app carries the state shared by one command tree.
type app struct {
	flags   *Config
	session *session
	stdin   io.Reader
}

// newRootCmd represents the base command
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cryptobox",
		Short: "go-cryptobox CLI - EC key and message encryption tool",
		Long: `go-cryptobox CLI generates EC key pairs, encrypts messages with AES
keys agreed over ECDH and exports private keys as password or peer
encrypted PKCS#8 envelopes.

The default cipher suite is ECDH-P-521-AES-256-CBC. Keys are kept in a
key ring directory, $HOME/.cryptobox/keys unless configured otherwise.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.session != nil {
				return nil
			}
			cfg, err := a.flags.Resolve(cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			if err := a.flags.BindCommandFlags(cmd.Flags()); err != nil {
				return err
			}
			s, err := openSession(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.session = s
			return nil
		},
	}

	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.flags.ConfigFile, "config", "",
		"config file (YAML)")
	flags.StringVar(&a.flags.Keyring, "keyring", a.flags.Keyring,
		"key ring backend (file, memory)")
	flags.StringVar(&a.flags.KeyDir, "key-dir", a.flags.KeyDir,
		"directory of the file key ring")
	flags.StringVar(&a.flags.Curve, "curve", a.flags.Curve,
		"elliptic curve (P-256, P-384, P-521)")
	flags.StringVar(&a.flags.Mode, "mode", a.flags.Mode,
		"AES mode (CBC, GCM)")
	flags.IntVar(&a.flags.KeyLength, "key-length", a.flags.KeyLength,
		"AES key length in bits (128, 192, 256)")
	flags.StringVarP(&a.flags.OutputFormat, "output", "o", a.flags.OutputFormat,
		"output format (text, json, yaml)")
	flags.BoolVarP(&a.flags.Verbose, "verbose", "v", false,
		"verbose output")
	flags.StringVar(&a.flags.MetricsFile, "metrics-file", "",
		"write a Prometheus textfile snapshot on exit")

	// Add subcommands
	rootCmd.AddCommand(newVersionCmd(a))
	rootCmd.AddCommand(newCipherCmd(a))
	for _, cmd := range newKeyCmds(a) {
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range newMessageCmds(a) {
		rootCmd.AddCommand(cmd)
	}
	return rootCmd
}

// run executes args against a fresh command tree and prints any error to
// stderr.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{flags: NewConfig(), stdin: stdin}
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	if a.session != nil {
		err = errors.Join(err, a.session.close())
	}
	if err != nil {
		format := a.flags.OutputFormat
		if a.session != nil {
			format = a.session.config.Output
		}
		_ = NewPrinter(format, stderr).PrintError(err) // Error printing to stderr is best-effort
	}
	return err
}

// Execute runs the root command against the process arguments
func Execute() error {
	return run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// printVerbose logs a message if verbose mode is enabled
func (a *app) printVerbose(msg string, args ...any) {
	a.session.logger.Debug(msg, args...)
}
