// SPDX-FileCopyrightText: 2023 Steffen Vogel <post@steffenvogel.de>
// SPDX-License-Identifier: Apache-2.0

package pqwg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errInvalidOutputFormat = errors.New("invalid output format")

type KeyOutputReason string

const (
	KeyOutputReasonExchanged KeyOutputReason = "exchanged"
	KeyOutputReasonStale     KeyOutputReason = "stale"
)

// Output format:
// output-key peer {} key-file {} {why}
type KeyOutput struct {
	Peer    PeerID
	KeyFile string
	Why     KeyOutputReason
}

func ParseKeyOutput(line string) (o KeyOutput, err error) {
	tokens := strings.Fields(line)

	if len(tokens) != 6 ||
		tokens[0] != "output-key" ||
		tokens[1] != "peer" ||
		tokens[3] != "key-file" {
		return o, errInvalidOutputFormat
	}

	if o.Peer, err = ParsePeerID(tokens[2]); err != nil {
		return o, fmt.Errorf("failed to parse peer id: %w", err)
	}

	o.KeyFile = tokens[4]
	o.Why = KeyOutputReason(tokens[5])

	switch o.Why {
	case KeyOutputReasonExchanged, KeyOutputReasonStale:
	default:
		return o, fmt.Errorf("%w: unknown reason %s", errInvalidOutputFormat, o.Why)
	}

	return o, nil
}

// ScanKeyOutput parses the first line of rd.
func ScanKeyOutput(rd io.Reader) (o KeyOutput, err error) {
	scanner := bufio.NewScanner(rd)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return o, err
		}

		return o, io.EOF
	}

	return ParseKeyOutput(scanner.Text())
}

func (o KeyOutput) String() string {
	return fmt.Sprintf("output-key peer %s key-file %s %s", o.Peer, o.KeyFile, o.Why)
}

func (o KeyOutput) Dump(wr io.Writer) (int, error) {
	return fmt.Fprintln(wr, o.String())
}
