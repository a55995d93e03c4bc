// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package modelfile

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/cpmech/gosl/chk"
)

// stateAttrs are the BODY attributes the encoder replaces with the live
// world state; everything else round-trips verbatim from the input
// document (spec.md §6: the snapshot is "identical in schema to the
// input, suitable for re-loading as initial state").
var stateAttrs = map[string]bool{
	"Position": true, "Quaternion": true,
	"LinearVelocity": true, "AngularVelocity": true,
}

// EncodeState renders the model as model-file text with every BODY's
// pose/twist replaced by the current simulation state. Numeric state is
// written in scientific notation with 17 digits after the decimal point
// (18 significant digits) so a
// save-then-load round trip reproduces the same floats bit-exactly
// (spec.md §8).
func (m *Model) EncodeState() (string, error) {
	var b strings.Builder
	b.WriteString("<GAITSYM>\n")
	for _, e := range m.elements {
		b.WriteString("  <")
		b.WriteString(e.tag)
		for _, key := range e.sortedKeys() {
			if e.tag == "BODY" && stateAttrs[key] {
				continue
			}
			writeAttr(&b, key, e.attrs[key])
		}
		if e.tag == "BODY" {
			id := e.attrs.String("ID", "")
			bd, ok := m.Sim.Bodies.Get(id)
			if !ok {
				return "", chk.Err("cannot encode state: body %q not registered", id)
			}
			writeAttr(&b, "Position", sf3(bd.Pos.X(), bd.Pos.Y(), bd.Pos.Z()))
			writeAttr(&b, "Quaternion", sf4(bd.Orient.W, bd.Orient.V.X(), bd.Orient.V.Y(), bd.Orient.V.Z()))
			writeAttr(&b, "LinearVelocity", sf3(bd.LinVel.X(), bd.LinVel.Y(), bd.LinVel.Z()))
			writeAttr(&b, "AngularVelocity", sf3(bd.AngVel.X(), bd.AngVel.Y(), bd.AngVel.Z()))
		}
		b.WriteString("/>\n")
	}
	b.WriteString("</GAITSYM>\n")
	return b.String(), nil
}

func writeAttr(b *strings.Builder, key, value string) {
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteString(`="`)
	var esc bytes.Buffer
	xml.EscapeText(&esc, []byte(value)) //nolint:errcheck // bytes.Buffer cannot fail
	b.Write(esc.Bytes())
	b.WriteByte('"')
}

func sf3(a, b, c float64) string {
	return fmt.Sprintf("%.17e %.17e %.17e", a, b, c)
}

func sf4(a, b, c, d float64) string {
	return fmt.Sprintf("%.17e %.17e %.17e %.17e", a, b, c, d)
}
