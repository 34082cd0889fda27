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
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeremyhahn/go-cryptobox/pkg/encoding"
	"github.com/jeremyhahn/go-cryptobox/pkg/envelope"
	"github.com/jeremyhahn/go-cryptobox/pkg/keyring"
	"github.com/spf13/cobra"
)

// Environment variables read when the matching flag is not set
const (
	EnvPassphrase    = "CRYPTOBOX_PASSPHRASE"
	EnvKeyPassphrase = "CRYPTOBOX_KEY_PASSPHRASE"
	EnvSecret        = "CRYPTOBOX_SECRET"
)

var errPassphraseRequired = errors.New("a passphrase is required (--passphrase, --passphrase-file or " + EnvPassphrase + ")")

func newKeyCmds(a *app) []*cobra.Command {
	return []*cobra.Command{
		newKeygenCmd(a),
		newPubkeyCmd(a),
		newFingerprintCmd(a),
		newListCmd(a),
		newDeleteCmd(a),
		newExportKeyCmd(a),
		newImportKeyCmd(a),
		newExportKeyToCmd(a),
		newImportKeyFromCmd(a),
	}
}

// newKeygenCmd generates a new key pair
func newKeygenCmd(a *app) *cobra.Command {
	var encrypt, force bool
	cmd := &cobra.Command{
		Use:   "keygen [name]",
		Short: "Generate a new EC key pair",
		Long: `Generate a key pair on the configured curve and store it in the key ring.
A random name is chosen when none is given. With --encrypt the private key
is stored as a password encrypted envelope instead of plain PKCS#8.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.session
			name := keyring.NewName()
			if len(args) == 1 {
				name = args[0]
			}
			if err := keyring.ValidateName(name); err != nil {
				return err
			}

			var passphrase []byte
			if encrypt {
				var err error
				if passphrase, err = readPassphrase(a, cmd); err != nil {
					return err
				}
			}

			exists, err := hasKey(s.keyring, name)
			if err != nil {
				return err
			}
			if exists {
				if !force {
					return fmt.Errorf("%w: %s (use --force to replace)", keyring.ErrAlreadyExists, name)
				}
				if err := s.keyring.Delete(name); err != nil {
					return err
				}
			}

			a.printVerbose("generating key pair", "name", name, "cipher", s.box.Cipher())
			privateKey, err := s.box.GenerateKeyPair()
			if err != nil {
				return fmt.Errorf("failed to generate key pair: %w", err)
			}
			if err := storeKeyPair(a, name, privateKey, passphrase); err != nil {
				return err
			}
			return printKeyInfo(a, name, &privateKey.PublicKey, encrypt)
		},
	}
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "store the private key password encrypted")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing key")
	addPassphraseFlags(cmd)
	return cmd
}

// newPubkeyCmd prints a public key
func newPubkeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey <name>",
		Short: "Print the public key of a key pair as PEM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			publicKey, err := loadPublicKey(a, args[0])
			if err != nil {
				return err
			}
			pemText, err := a.session.box.ExportPublicKeyPEM(publicKey)
			if err != nil {
				return err
			}
			return a.session.printer.PrintPEM(args[0], pemText)
		},
	}
}

// newFingerprintCmd prints a public key fingerprint
func newFingerprintCmd(a *app) *cobra.Command {
	var hash string
	cmd := &cobra.Command{
		Use:   "fingerprint <name>",
		Short: "Print the fingerprint of a public key",
		Long:  `Print the hex digest of the DER encoded SubjectPublicKeyInfo.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			publicKey, err := loadPublicKey(a, args[0])
			if err != nil {
				return err
			}
			var fingerprint string
			switch strings.ToLower(hash) {
			case "sha256":
				fingerprint, err = a.session.box.Sha256Fingerprint(publicKey)
			case "sha1":
				fingerprint, err = a.session.box.Sha1Fingerprint(publicKey)
			default:
				return fmt.Errorf("unsupported fingerprint hash: %s (must be sha256 or sha1)", hash)
			}
			if err != nil {
				return err
			}
			return a.session.printer.PrintValue("fingerprint", fingerprint)
		},
	}
	cmd.Flags().StringVar(&hash, "hash", "sha256", "digest (sha256, sha1)")
	return cmd
}

// newListCmd lists the key ring
func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List keys in the key ring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.session.keyring.List()
			if err != nil {
				return err
			}
			return a.session.printer.PrintEntries(entries)
		},
	}
}

// newDeleteCmd deletes a key
func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete every entry stored under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session.keyring.Delete(args[0]); err != nil {
				return err
			}
			return a.session.printer.PrintSuccess(fmt.Sprintf("Deleted key: %s", args[0]))
		},
	}
}

// newExportKeyCmd exports a password encrypted private key
func newExportKeyCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-key <name>",
		Short: "Export a private key as a password encrypted PEM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase, err := readPassphrase(a, cmd)
			if err != nil {
				return err
			}
			privateKey, err := loadPrivateKey(a, args[0])
			if err != nil {
				return err
			}
			pemText, err := a.session.box.ExportEncryptedPrivateKeyPEM(privateKey, passphrase)
			if err != nil {
				return err
			}
			return writePEM(a, out, args[0], pemText)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the PEM to a file instead of stdout")
	addPassphraseFlags(cmd)
	addKeyPassphraseFlag(cmd)
	return cmd
}

// newImportKeyCmd imports a password encrypted private key
func newImportKeyCmd(a *app) *cobra.Command {
	var in string
	var keepEncrypted, force, foreign bool
	cmd := &cobra.Command{
		Use:   "import-key <name>",
		Short: "Import a password encrypted private key",
		Long: `Decrypt an ENCRYPTED PRIVATE KEY PEM read from --in or stdin and store the
key pair under name. With --keep-encrypted the envelope is stored as is
once it has been verified.

With --foreign, envelopes using other PBES2 parameters (AES-128, SHA-1,
scrypt and so on, as written by "openssl pkcs8 -topk8") are accepted too.
Such keys are re-encrypted with the standard parameters when
--keep-encrypted is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			passphrase, err := readPassphrase(a, cmd)
			if err != nil {
				return err
			}
			pemText, err := readInput(a, in)
			if err != nil {
				return err
			}
			privateKey, err := a.session.box.ImportEncryptedPrivateKeyPEM(string(pemText), passphrase)
			reseal := false
			if foreign && errors.Is(err, envelope.ErrUnsupportedAlgorithm) {
				a.printVerbose("envelope parameters not supported, decoding as generic PKCS#8")
				privateKey, err = decodeForeignKey(pemText, passphrase)
				reseal = true
			}
			if err != nil {
				return err
			}
			if err := replaceable(a, name, force); err != nil {
				return err
			}
			switch {
			case keepEncrypted && reseal:
				err = storeKeyPair(a, name, privateKey, passphrase)
			case keepEncrypted:
				err = storeEncrypted(a, name, privateKey, string(pemText))
			default:
				err = storeKeyPair(a, name, privateKey, nil)
			}
			if err != nil {
				return err
			}
			return printKeyInfo(a, name, &privateKey.PublicKey, keepEncrypted)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "read the PEM from a file instead of stdin")
	cmd.Flags().BoolVar(&keepEncrypted, "keep-encrypted", false, "store the envelope instead of the plain key")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing key")
	cmd.Flags().BoolVar(&foreign, "foreign", false, "accept PKCS#8 envelopes with other encryption parameters")
	addPassphraseFlags(cmd)
	return cmd
}

// decodeForeignKey decodes an encrypted PKCS#8 PEM the box codec rejects.
func decodeForeignKey(pemText, passphrase []byte) (*ecdsa.PrivateKey, error) {
	key, err := encoding.DecodePrivateKeyPEM(pemText, passphrase)
	if err != nil {
		return nil, err
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, encoding.ErrNotECKey
	}
	return ecKey, nil
}

// newExportKeyToCmd exports a private key encrypted for a peer
func newExportKeyToCmd(a *app) *cobra.Command {
	var out, own string
	cmd := &cobra.Command{
		Use:   "export-key-to <name>",
		Short: "Export a private key encrypted for a peer",
		Long: `Export the private key under name as an ENCRYPTED PRIVATE KEY PEM whose
passphrase is agreed over ECDH between --key (default: name) and the
peer's public key. The peer imports it with import-key-from.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, err := loadPrivateKey(a, args[0])
			if err != nil {
				return err
			}
			if own == "" {
				own = args[0]
			}
			ownKey := privateKey
			if own != args[0] {
				if ownKey, err = loadPrivateKey(a, own); err != nil {
					return err
				}
			}
			peerKey, err := loadPeer(a, cmd)
			if err != nil {
				return err
			}
			pemText, err := a.session.box.ExportEncryptedPrivateKeyPEMTo(privateKey, ownKey, peerKey)
			if err != nil {
				return err
			}
			return writePEM(a, out, args[0], pemText)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the PEM to a file instead of stdout")
	cmd.Flags().StringVar(&own, "key", "", "own private key used for key agreement")
	addPeerFlags(cmd)
	addKeyPassphraseFlag(cmd)
	return cmd
}

// newImportKeyFromCmd imports a private key encrypted by a peer
func newImportKeyFromCmd(a *app) *cobra.Command {
	var in, own string
	var force bool
	cmd := &cobra.Command{
		Use:   "import-key-from <name>",
		Short: "Import a private key encrypted by a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ownKey, err := loadPrivateKey(a, own)
			if err != nil {
				return err
			}
			peerKey, err := loadPeer(a, cmd)
			if err != nil {
				return err
			}
			pemText, err := readInput(a, in)
			if err != nil {
				return err
			}
			privateKey, err := a.session.box.ImportEncryptedPrivateKeyPEMFrom(string(pemText), ownKey, peerKey)
			if err != nil {
				return err
			}
			if err := replaceable(a, name, force); err != nil {
				return err
			}
			if err := storeKeyPair(a, name, privateKey, nil); err != nil {
				return err
			}
			return printKeyInfo(a, name, &privateKey.PublicKey, false)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "read the PEM from a file instead of stdin")
	cmd.Flags().StringVar(&own, "key", "", "own private key used for key agreement")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing key")
	_ = cmd.MarkFlagRequired("key")
	addPeerFlags(cmd)
	addKeyPassphraseFlag(cmd)
	return cmd
}

func addPassphraseFlags(cmd *cobra.Command) {
	cmd.Flags().String("passphrase", "", "passphrase (or "+EnvPassphrase+")")
	cmd.Flags().String("passphrase-file", "", "read the passphrase from a file")
}

func addKeyPassphraseFlag(cmd *cobra.Command) {
	cmd.Flags().String("key-passphrase", "",
		"passphrase of a stored encrypted private key (or "+EnvKeyPassphrase+")")
}

func addPeerFlags(cmd *cobra.Command) {
	cmd.Flags().String("peer", "", "peer public key name in the key ring")
	cmd.Flags().String("peer-file", "", "peer public key PEM file")
	cmd.MarkFlagsOneRequired("peer", "peer-file")
	cmd.MarkFlagsMutuallyExclusive("peer", "peer-file")
}

// readPassphrase resolves the passphrase from --passphrase, then
// --passphrase-file, then the environment.
func readPassphrase(a *app, cmd *cobra.Command) ([]byte, error) {
	if path, _ := cmd.Flags().GetString("passphrase-file"); path != "" && !cmd.Flags().Changed("passphrase") {
		// #nosec G304 - Passphrase file path is provided by the user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read passphrase file: %w", err)
		}
		p := strings.TrimRight(string(data), "\r\n")
		if p == "" {
			return nil, errPassphraseRequired
		}
		return []byte(p), nil
	}
	if p := a.flags.secret("passphrase"); p != "" {
		return []byte(p), nil
	}
	return nil, errPassphraseRequired
}

func keyPassphrase(a *app) []byte {
	if p := a.flags.secret("key-passphrase"); p != "" {
		return []byte(p)
	}
	return nil
}

// readInput reads path, or stdin when path is empty or "-".
func readInput(a *app, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(a.stdin)
	}
	// #nosec G304 - Input path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

func writePEM(a *app, out, name, pemText string) error {
	if out == "" {
		return a.session.printer.PrintPEM(name, pemText)
	}
	if err := os.WriteFile(out, []byte(pemText), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	return a.session.printer.PrintSuccess(fmt.Sprintf("Wrote %s", out))
}

// loadPrivateKey loads a plain private key, falling back to the encrypted
// entry when only that is stored.
func loadPrivateKey(a *app, name string) (*ecdsa.PrivateKey, error) {
	s := a.session
	pemText, err := s.keyring.Load(name, keyring.KindPrivate)
	if err == nil {
		return s.box.ImportPrivateKeyPEM(pemText)
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return nil, err
	}

	pemText, err = s.keyring.Load(name, keyring.KindEncrypted)
	if err != nil {
		return nil, err
	}
	passphrase := keyPassphrase(a)
	if passphrase == nil {
		return nil, fmt.Errorf("private key %s is encrypted: set --key-passphrase or %s", name, EnvKeyPassphrase)
	}
	a.printVerbose("decrypting stored private key", "name", name)
	return s.box.ImportEncryptedPrivateKeyPEM(pemText, passphrase)
}

// loadPublicKey loads the public entry, or derives it from the private key.
func loadPublicKey(a *app, name string) (*ecdsa.PublicKey, error) {
	s := a.session
	pemText, err := s.keyring.Load(name, keyring.KindPublic)
	if err == nil {
		return s.box.ImportPublicKeyPEM(pemText)
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return nil, err
	}
	privateKey, err := loadPrivateKey(a, name)
	if err != nil {
		return nil, err
	}
	return s.box.PublicKey(privateKey)
}

func loadPeer(a *app, cmd *cobra.Command) (*ecdsa.PublicKey, error) {
	if path, _ := cmd.Flags().GetString("peer-file"); path != "" {
		data, err := readInput(a, path)
		if err != nil {
			return nil, err
		}
		return a.session.box.ImportPublicKeyPEM(string(data))
	}
	name, _ := cmd.Flags().GetString("peer")
	return loadPublicKey(a, name)
}

func hasKey(k *keyring.Keyring, name string) (bool, error) {
	for _, kind := range keyring.Kinds {
		ok, err := k.Has(name, kind)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// replaceable clears name when force is set, or fails if it is taken.
func replaceable(a *app, name string, force bool) error {
	exists, err := hasKey(a.session.keyring, name)
	if err != nil || !exists {
		return err
	}
	if !force {
		return fmt.Errorf("%w: %s (use --force to replace)", keyring.ErrAlreadyExists, name)
	}
	return a.session.keyring.Delete(name)
}

// storeKeyPair stores the public key and either the plain private key or,
// when passphrase is set, a password encrypted envelope.
func storeKeyPair(a *app, name string, privateKey *ecdsa.PrivateKey, passphrase []byte) error {
	s := a.session
	if passphrase != nil {
		pemText, err := s.box.ExportEncryptedPrivateKeyPEM(privateKey, passphrase)
		if err != nil {
			return err
		}
		return storeEncrypted(a, name, privateKey, pemText)
	}

	pemText, err := s.box.ExportPrivateKeyPEM(privateKey)
	if err != nil {
		return err
	}
	if err := s.keyring.Store(name, keyring.KindPrivate, pemText, false); err != nil {
		return err
	}
	return storePublic(a, name, &privateKey.PublicKey)
}

func storeEncrypted(a *app, name string, privateKey *ecdsa.PrivateKey, pemText string) error {
	if err := a.session.keyring.Store(name, keyring.KindEncrypted, pemText, false); err != nil {
		return err
	}
	return storePublic(a, name, &privateKey.PublicKey)
}

func storePublic(a *app, name string, publicKey *ecdsa.PublicKey) error {
	pemText, err := a.session.box.ExportPublicKeyPEM(publicKey)
	if err != nil {
		return err
	}
	return a.session.keyring.Store(name, keyring.KindPublic, pemText, false)
}

func printKeyInfo(a *app, name string, publicKey *ecdsa.PublicKey, encrypted bool) error {
	fingerprint, err := a.session.box.Sha256Fingerprint(publicKey)
	if err != nil {
		return err
	}
	return a.session.printer.PrintKeyInfo(&KeyInfo{
		Name:              name,
		Cipher:            a.session.box.Cipher(),
		Sha256Fingerprint: fingerprint,
		Encrypted:         encrypted,
	})
}
