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
	"fmt"

	"github.com/jeremyhahn/go-cryptobox/pkg/encoding"
	"github.com/spf13/cobra"
)

func newMessageCmds(a *app) []*cobra.Command {
	return []*cobra.Command{
		newGenkeyCmd(a),
		newEncryptCmd(a),
		newDecryptCmd(a),
		newEncryptToCmd(a),
		newDecryptFromCmd(a),
	}
}

// newGenkeyCmd generates a raw AES key
func newGenkeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate a random AES key and print it as hex",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.session.box.GenerateKey()
			if err != nil {
				return err
			}
			raw, err := a.session.box.ExportKey(key)
			if err != nil {
				return err
			}
			return a.session.printer.PrintValue("key", encoding.EncodeHex(raw))
		},
	}
}

// newEncryptCmd encrypts with a shared AES key
func newEncryptCmd(a *app) *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a message with an AES key",
		Long: `Encrypt a message read from --in or stdin with the hex AES key given by
--secret or ` + EnvSecret + `. The output is the base64 IV followed by the
ciphertext.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readSecret(a)
			if err != nil {
				return err
			}
			key, err := a.session.box.ImportKey(raw)
			if err != nil {
				return err
			}
			message, err := readInput(a, in)
			if err != nil {
				return err
			}
			box, err := a.session.box.Encrypt(message, key)
			if err != nil {
				return err
			}
			return a.session.printer.PrintValue("ciphertext", encoding.EncodeBase64(box))
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "read the message from a file instead of stdin")
	addSecretFlag(cmd)
	return cmd
}

// newDecryptCmd decrypts with a shared AES key
func newDecryptCmd(a *app) *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a message with an AES key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readSecret(a)
			if err != nil {
				return err
			}
			key, err := a.session.box.ImportKey(raw)
			if err != nil {
				return err
			}
			box, err := readBox(a, in)
			if err != nil {
				return err
			}
			plaintext, err := a.session.box.Decrypt(box, key)
			if err != nil {
				return err
			}
			return a.session.printer.PrintPlaintext(plaintext)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "read the ciphertext from a file instead of stdin")
	addSecretFlag(cmd)
	return cmd
}

// newEncryptToCmd encrypts for a peer
func newEncryptToCmd(a *app) *cobra.Command {
	var in, own string
	cmd := &cobra.Command{
		Use:   "encrypt-to",
		Short: "Encrypt a message for a peer",
		Long: `Encrypt a message with the AES key agreed over ECDH between --key and
the peer's public key. The peer decrypts it with decrypt-from.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, err := loadPrivateKey(a, own)
			if err != nil {
				return err
			}
			peerKey, err := loadPeer(a, cmd)
			if err != nil {
				return err
			}
			message, err := readInput(a, in)
			if err != nil {
				return err
			}
			a.printVerbose("encrypting for peer", "key", own, "bytes", len(message))
			box, err := a.session.box.EncryptTo(message, privateKey, peerKey)
			if err != nil {
				return err
			}
			return a.session.printer.PrintValue("ciphertext", encoding.EncodeBase64(box))
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "read the message from a file instead of stdin")
	cmd.Flags().StringVar(&own, "key", "", "own private key used for key agreement")
	_ = cmd.MarkFlagRequired("key")
	addPeerFlags(cmd)
	addKeyPassphraseFlag(cmd)
	return cmd
}

// newDecryptFromCmd decrypts a message from a peer
func newDecryptFromCmd(a *app) *cobra.Command {
	var in, own string
	cmd := &cobra.Command{
		Use:   "decrypt-from",
		Short: "Decrypt a message from a peer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, err := loadPrivateKey(a, own)
			if err != nil {
				return err
			}
			peerKey, err := loadPeer(a, cmd)
			if err != nil {
				return err
			}
			box, err := readBox(a, in)
			if err != nil {
				return err
			}
			plaintext, err := a.session.box.DecryptFrom(box, privateKey, peerKey)
			if err != nil {
				return err
			}
			return a.session.printer.PrintPlaintext(plaintext)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "read the ciphertext from a file instead of stdin")
	cmd.Flags().StringVar(&own, "key", "", "own private key used for key agreement")
	_ = cmd.MarkFlagRequired("key")
	addPeerFlags(cmd)
	addKeyPassphraseFlag(cmd)
	return cmd
}

func addSecretFlag(cmd *cobra.Command) {
	cmd.Flags().String("secret", "", "hex AES key (or "+EnvSecret+")")
}

func readSecret(a *app) ([]byte, error) {
	secret := a.flags.secret("secret")
	if secret == "" {
		return nil, fmt.Errorf("an AES key is required (--secret or %s)", EnvSecret)
	}
	raw, err := encoding.DecodeHex(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid AES key: %w", err)
	}
	return raw, nil
}

// readBox reads base64 ciphertext.
func readBox(a *app, path string) ([]byte, error) {
	data, err := readInput(a, path)
	if err != nil {
		return nil, err
	}
	box, err := encoding.DecodeBase64(string(data))
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext encoding: %w", err)
	}
	return box, nil
}
