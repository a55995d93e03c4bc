// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package modelfile implements the model-file loader and model-state
// writer of spec.md §6: a single text document (tag/attribute tree)
// enumerating entities, parsed in two passes — (1) every element into a
// raw tag + flat attribute map, (2) a fixed-point over resolution attempts
// so forward references between elements work (spec.md §9).
package modelfile

import (
	"bytes"
	"encoding/xml"
	"io"
	"sort"

	"github.com/cpmech/gaitsym/registry"
	"github.com/cpmech/gosl/chk"
	gio "github.com/cpmech/gosl/io"
)

// element is one parsed model-file element: a tag from the fixed set of
// spec.md §6 plus its flat attribute map. The map holds only the keys in
// knownAttrs (unknown attributes are dropped at parse time) and is retained
// for the life of the model so the state writer can re-emit it (C2's
// "load/save" contract).
type element struct {
	tag   string
	attrs registry.Attributes
}

// validTags is the closed tag set of spec.md §6; unknown tags are
// rejected at parse time.
var validTags = map[string]bool{
	"GLOBAL": true, "BODY": true, "MARKER": true, "JOINT": true,
	"GEOM": true, "STRAP": true, "MUSCLE": true, "FLUIDSAC": true,
	"DRIVER": true, "DATATARGET": true, "CONTROLLER": true,
	"REPORTER": true, "WAREHOUSE": true,
}

// knownAttrs lists, per tag, every attribute the loader interprets.
// Attributes outside this list are ignored with a warning rather than an
// error (spec.md §6: "unknown attributes are ignored with a warning").
var knownAttrs = map[string]map[string]bool{
	"GLOBAL": set("Gravity", "StepSize", "ERP", "CFM",
		"ContactMaxCorrectingVel", "ContactSurfaceLayer", "MaxContacts",
		"LinearDamping", "AngularDamping", "IntegrationStepType",
		"FitnessType", "BMR", "TimeLimit", "MechanicalEnergyLimit",
		"MetabolicEnergyLimit", "AllowConnectedCollisions",
		"AllowInternalCollisions", "PermittedNumericalErrors",
		"NumericalErrorsScore", "DistanceTravelledBodyID",
		"OutputModelStateFile", "OutputModelStateAtTime",
		"OutputModelStateAtCycle", "AbortAfterModelState"),
	"BODY": set("ID", "Mass", "MOI", "ConstructionPosition", "ConstructionDensity",
		"Position", "Quaternion", "LinearVelocity", "AngularVelocity",
		"PositionLowBound", "PositionHighBound",
		"LinearVelocityLowBound", "LinearVelocityHighBound",
		"AngularVelocityLowBound", "AngularVelocityHighBound",
		"Fixed", "Dump"),
	"MARKER": set("ID", "BodyID", "Position", "Quaternion", "Dump"),
	"JOINT": set("ID", "Type", "Body1MarkerID", "Body2MarkerID",
		"LowStop", "HighStop", "StopCFM", "StopERP", "StopBounce",
		"LoStopTorqueLimit", "HiStopTorqueLimit",
		"MotorVelocity", "MotorMaxForce",
		"StressLimit", "StressWindow", "StressCutoffFrequency", "Dump"),
	"GEOM": set("ID", "Type", "BodyID", "Position", "Quaternion",
		"Radius", "Length", "Dimensions", "ABCD",
		"Vertices", "Triangles",
		"Mu", "Rho", "Bounce", "SoftCFM", "SoftERP",
		"Abort", "Adhesion", "ExcludeIDList", "ContactGroup", "Dump"),
	"STRAP": set("ID", "Type", "OriginMarkerID", "InsertionMarkerID",
		"ViaPointMarkerIDList", "Cylinder1MarkerID", "Cylinder2MarkerID",
		"Cylinder1Radius", "Cylinder2Radius", "WrapSegments", "Dump"),
	"MUSCLE": set("ID", "Type", "StrapID", "FMax", "VMax", "K",
		"PCA", "ForcePerUnitArea", "VMaxFactor", "FibreLength",
		"TendonLength", "OptimumLength", "Width",
		"SerialStiffness", "ParallelStiffness", "SerialLaw", "ParallelLaw",
		"SerialDamping", "ParallelDamping",
		"Damping", "TActivation", "TDeactivation", "FastTwitchProportion",
		"MinimumActivation", "ActivationKinetics",
		"UnloadedLength", "YoungsModulus", "Area", "BreakingStrain", "Dump"),
	"FLUIDSAC": set("ID", "Type", "MarkerIDList", "TriangleList",
		"AmountOfSubstanceTimesRT", "ExternalPressure",
		"BulkModulus", "BulkDamping", "RestVolume", "RestPressure", "Dump"),
	"DRIVER": set("ID", "Type", "TargetIDList", "DriverRange",
		"LinearInterpolation", "Value", "ChangeTimes", "Values",
		"Durations", "PhaseDelay", "CycleTime", "Delays", "Widths", "Heights",
		"MarkerID", "ReferenceMarkerID", "Axis", "Velocity",
		"RadiusA", "RadiusB", "Period", "Phase", "OutputAxis",
		"Omega", "Sigma", "ContactGeomID",
		"BaseMarkerID", "EndEffectorMarkerID", "TargetMarkerID",
		"Link1Length", "Link2Length", "Link3Length", "OutputJoint", "Dump"),
	"CONTROLLER": set("ID", "Type", "Kp", "Ki", "Kd", "TargetIDList",
		"DriverRange", "MuscleID", "Dump"),
	"DATATARGET": set("ID", "Type", "TargetID", "TargetID2",
		"ReferenceMarkerID", "ReferenceVector",
		"TargetTimes", "TargetValues", "Intercept", "Slope",
		"MatchType", "MatchPolicy", "AbortThreshold", "Axis", "Dump"),
	"REPORTER": set("ID", "Type", "TargetID", "TargetID2",
		"ReferenceMarkerID", "ReferenceVector", "Axis"),
	"WAREHOUSE": set("ID", "StateVectors"),
}

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

// parseDocument decodes the whole document into elements in document
// order, rejecting unknown tags and, when verbose, warning about every
// unknown attribute it drops.
func parseDocument(data []byte, verbose bool) ([]*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []*element
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, chk.Err("model file is not well-formed XML: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				continue // document root, any tag accepted
			}
			tag := t.Name.Local
			if !validTags[tag] {
				return nil, chk.Err("unknown element tag %q", tag)
			}
			attrs := make(registry.Attributes, len(t.Attr))
			for _, a := range t.Attr {
				key := a.Name.Local
				if !knownAttrs[tag][key] {
					if verbose {
						gio.Pfyel("warning: ignoring unknown attribute %q on <%s>\n", key, tag)
					}
					continue
				}
				attrs[key] = a.Value
			}
			out = append(out, &element{tag: tag, attrs: attrs})
		case xml.EndElement:
			depth--
		}
	}
	if len(out) == 0 {
		return nil, chk.Err("model file contains no elements")
	}
	return out, nil
}

// sortedKeys returns an element's attribute keys sorted, for deterministic
// serialisation.
func (e *element) sortedKeys() []string {
	keys := make([]string, 0, len(e.attrs))
	for k := range e.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
