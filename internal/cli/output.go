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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jeremyhahn/go-cryptobox/pkg/encoding"
	"github.com/jeremyhahn/go-cryptobox/pkg/keyring"
	"gopkg.in/yaml.v3"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// KeyInfo describes a stored key pair.
type KeyInfo struct {
	Name              string `json:"name" yaml:"name"`
	Cipher            string `json:"cipher" yaml:"cipher"`
	Sha256Fingerprint string `json:"sha256_fingerprint" yaml:"sha256_fingerprint"`
	Encrypted         bool   `json:"encrypted" yaml:"encrypted"`
}

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		// Unknown formats still need to surface the error
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

// PrintKeyInfo prints a key summary
func (p *Printer) PrintKeyInfo(info *KeyInfo) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(info)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Key Information:\n")
		fmt.Fprintf(p.writer, "  Name:        %s\n", info.Name)
		fmt.Fprintf(p.writer, "  Cipher:      %s\n", info.Cipher)
		fmt.Fprintf(p.writer, "  Fingerprint: %s\n", info.Sha256Fingerprint)
		fmt.Fprintf(p.writer, "  Encrypted:   %t\n", info.Encrypted)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintEntries prints the key ring contents
func (p *Printer) PrintEntries(entries []keyring.Entry) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		if entries == nil {
			entries = []keyring.Entry{}
		}
		return p.printStructured(map[string]interface{}{
			"keys": entries,
		})
	case OutputFormatText:
		if len(entries) == 0 {
			fmt.Fprintln(p.writer, "No keys found")
			return nil
		}
		fmt.Fprintln(p.writer, "Keys:")
		for _, e := range entries {
			kinds := make([]string, len(e.Kinds))
			for i, k := range e.Kinds {
				kinds[i] = string(k)
			}
			fmt.Fprintf(p.writer, "  - %s (%s)\n", e.Name, strings.Join(kinds, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintPEM prints a PEM document. Text output is the PEM itself, newline
// terminated, so it can be redirected into a file.
func (p *Printer) PrintPEM(name, pemText string) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(map[string]interface{}{
			"name": name,
			"pem":  pemText,
		})
	case OutputFormatText:
		if !strings.HasSuffix(pemText, "\n") {
			pemText += "\n"
		}
		_, err := io.WriteString(p.writer, pemText)
		return err
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintValue prints a single named value, such as a ciphertext.
func (p *Printer) PrintValue(field, value string) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(map[string]interface{}{
			field: value,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, value)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintPlaintext prints decrypted bytes. Text output is written raw,
// structured output carries them base64 encoded.
func (p *Printer) PrintPlaintext(plaintext []byte) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(map[string]interface{}{
			"plaintext": encoding.EncodeBase64(plaintext),
		})
	case OutputFormatText:
		_, err := p.writer.Write(plaintext)
		return err
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printStructured(data interface{}) error {
	if p.format == OutputFormatYAML {
		encoder := yaml.NewEncoder(p.writer)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return err
		}
		return encoder.Close()
	}
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
