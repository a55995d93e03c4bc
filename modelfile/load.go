// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package modelfile

import (
	"math"
	"strings"

	"github.com/cpmech/gaitsym/body"
	"github.com/cpmech/gaitsym/controller"
	"github.com/cpmech/gaitsym/datatarget"
	"github.com/cpmech/gaitsym/driver"
	"github.com/cpmech/gaitsym/fluidsac"
	"github.com/cpmech/gaitsym/geom"
	"github.com/cpmech/gaitsym/internal/resolve"
	"github.com/cpmech/gaitsym/marker"
	"github.com/cpmech/gaitsym/muscle"
	"github.com/cpmech/gaitsym/registry"
	"github.com/cpmech/gaitsym/sim"
	"github.com/cpmech/gaitsym/spatial"
	"github.com/cpmech/gaitsym/strap"
	"github.com/cpmech/gosl/chk"
	gio "github.com/cpmech/gosl/io"
)

// Model is a loaded simulation plus the raw elements it was built from,
// retained so the model-state writer can re-emit the document with only
// the state-bearing attributes replaced (spec.md §6, "Model-state
// snapshot ... identical in schema to the input").
type Model struct {
	Sim      *sim.Simulation
	elements []*element

	markers *registry.Registry[*marker.Marker]
}

// Markers exposes the marker registry (markers live on the Model rather
// than on Simulation since only load-time wiring and the encoder need
// them by name).
func (m *Model) Markers() *registry.Registry[*marker.Marker] { return m.markers }

// Load parses and resolves a model document into a ready-to-run
// Simulation. Forward references between elements are legal: resolution
// fixed-points until no further element resolves, then reports every
// still-unresolved id together (spec.md §6/§9).
func Load(data []byte, verbose bool) (*Model, error) {
	elements, err := parseDocument(data, verbose)
	if err != nil {
		return nil, err
	}

	var global *element
	for _, e := range elements {
		if e.tag == "GLOBAL" {
			if global != nil {
				return nil, chk.Err("model file has more than one GLOBAL element")
			}
			global = e
		}
	}
	if global == nil {
		return nil, chk.Err("model file has no GLOBAL element")
	}
	cfg, err := loadGlobal(global.attrs)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Sim:      sim.NewSimulation(cfg),
		elements: elements,
		markers:  registry.NewRegistry[*marker.Marker](),
	}

	// one Resolvable per non-GLOBAL element, attempted in document order
	// until a full pass makes no progress
	var pending []resolve.Resolvable
	for _, e := range elements {
		if e.tag == "GLOBAL" {
			continue
		}
		e := e
		pending = append(pending, resolve.Resolvable{
			ID:  e.tag + " " + e.attrs.String("ID", "?"),
			Try: func() (bool, error) { return m.loadElement(e) },
		})
	}
	if err := resolve.FixedPoint(pending); err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	m.Sim.StateEncoder = func(*sim.Simulation) (string, error) { return m.EncodeState() }
	return m, nil
}

// loadElement dispatches one element's construction. ok=false means a
// reference is not registered yet (retry next pass); err means the element
// itself is invalid (terminal).
func (m *Model) loadElement(e *element) (ok bool, err error) {
	switch e.tag {
	case "BODY":
		return m.loadBody(e.attrs)
	case "MARKER":
		return m.loadMarker(e.attrs)
	case "JOINT":
		return m.loadJoint(e.attrs)
	case "GEOM":
		return m.loadGeom(e.attrs)
	case "STRAP":
		return m.loadStrap(e.attrs)
	case "MUSCLE":
		return m.loadMuscle(e.attrs)
	case "FLUIDSAC":
		return m.loadFluidSac(e.attrs)
	case "DRIVER":
		return m.loadDriver(e.attrs)
	case "CONTROLLER":
		return m.loadController(e.attrs)
	case "DATATARGET":
		return m.loadDataTarget(e.attrs)
	case "REPORTER":
		return m.loadReporter(e.attrs)
	case "WAREHOUSE":
		return m.loadWarehouse(e.attrs)
	}
	return false, chk.Err("unhandled element tag %q", e.tag)
}

func loadGlobal(a registry.Attributes) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if g, err := a.Float64Slice("Gravity"); err == nil && len(g) == 3 {
		cfg.Gravity = spatial.Vec3{g[0], g[1], g[2]}
	}
	if v, err := a.Float64("StepSize"); err == nil {
		cfg.StepSize = v
	}
	if v, err := a.Float64("ERP"); err == nil {
		cfg.ERP = v
	}
	if v, err := a.Float64("CFM"); err == nil {
		cfg.CFM = v
	}
	if v, err := a.Float64("ContactMaxCorrectingVel"); err == nil {
		cfg.ContactMaxCorrectingVel = v
	}
	if v, err := a.Float64("ContactSurfaceLayer"); err == nil {
		cfg.ContactSurfaceLayer = v
	}
	cfg.MaxContactsPerPair = a.Int("MaxContacts", cfg.MaxContactsPerPair)
	if v, err := a.Float64("LinearDamping"); err == nil {
		cfg.LinearDamping = v
	}
	if v, err := a.Float64("AngularDamping"); err == nil {
		cfg.AngularDamping = v
	}
	switch a.String("IntegrationStepType", "World") {
	case "World":
		cfg.Integrator = sim.WorldIntegrator
	case "Quick":
		cfg.Integrator = sim.QuickIntegrator
	default:
		return cfg, chk.Err("GLOBAL: invalid IntegrationStepType %q", a.String("IntegrationStepType", ""))
	}
	switch a.String("FitnessType", "KinematicMatch") {
	case "KinematicMatch":
		cfg.FitnessType = sim.KinematicMatch
	case "KinematicMatchMiniMax":
		cfg.FitnessType = sim.KinematicMatchMiniMax
	case "ClosestWarehouse":
		cfg.FitnessType = sim.ClosestWarehouse
	default:
		return cfg, chk.Err("GLOBAL: invalid FitnessType %q", a.String("FitnessType", ""))
	}
	if v, err := a.Float64("BMR"); err == nil {
		cfg.BMR = v
	}
	if v, err := a.Float64("TimeLimit"); err == nil {
		cfg.TimeLimit = v
	}
	if v, err := a.Float64("MechanicalEnergyLimit"); err == nil {
		cfg.MechanicalEnergyLimit = v
		cfg.HasEnergyLimits = true
	}
	if v, err := a.Float64("MetabolicEnergyLimit"); err == nil {
		cfg.MetabolicEnergyLimit = v
		cfg.HasEnergyLimits = true
	}
	cfg.AllowConnectedCollisions = a.Bool("AllowConnectedCollisions", false)
	cfg.AllowInternalCollisions = a.Bool("AllowInternalCollisions", false)
	cfg.PermittedNumericalErrors = a.Int("PermittedNumericalErrors", 0)
	if v, err := a.Float64("NumericalErrorsScore"); err == nil {
		cfg.NumericalErrorsScore = v
	}
	cfg.DistanceBodyName = a.String("DistanceTravelledBodyID", "")
	cfg.OutputModelStateFile = a.String("OutputModelStateFile", "")
	if v, err := a.Float64("OutputModelStateAtTime"); err == nil {
		cfg.OutputStateAtTime = v
	}
	cfg.OutputStateAtCycle = a.Int("OutputModelStateAtCycle", 0)
	cfg.AbortAfterState = a.Bool("AbortAfterModelState", false)
	return cfg, nil
}

func vec3Attr(a registry.Attributes, key string, def spatial.Vec3) (spatial.Vec3, error) {
	if _, ok := a[key]; !ok {
		return def, nil
	}
	v, err := a.Float64Slice(key)
	if err != nil {
		return def, err
	}
	if len(v) != 3 {
		return def, chk.Err("attribute %q needs 3 values, has %d", key, len(v))
	}
	return spatial.Vec3{v[0], v[1], v[2]}, nil
}

func quatAttr(a registry.Attributes, key string, def spatial.Quat) (spatial.Quat, error) {
	if _, ok := a[key]; !ok {
		return def, nil
	}
	v, err := a.Float64Slice(key)
	if err != nil {
		return def, err
	}
	if len(v) != 4 {
		return def, chk.Err("attribute %q needs 4 values (w x y z), has %d", key, len(v))
	}
	return spatial.Quat{W: v[0], V: spatial.Vec3{v[1], v[2], v[3]}}, nil
}

func (m *Model) loadBody(a registry.Attributes) (bool, error) {
	id := a.String("ID", "")
	if _, done := m.Sim.Bodies.Get(id); done {
		return true, nil
	}
	var b *body.Body
	if a.Bool("Fixed", false) {
		b = body.NewFixedBody(id)
	} else {
		mass, err := a.Float64("Mass")
		if err != nil {
			return false, err
		}
		if mass <= 0 {
			return false, chk.Err("body %q has non-positive mass %g", id, mass)
		}
		moi, err := a.Float64Slice("MOI")
		if err != nil {
			return false, err
		}
		if len(moi) != 6 {
			return false, chk.Err("body %q MOI needs 6 values (Ixx Iyy Izz Ixy Ixz Iyz)", id)
		}
		b = body.NewBody(id, mass, spatial.Sym3(moi[0], moi[1], moi[2], moi[3], moi[4], moi[5]))
	}
	pos, err := vec3Attr(a, "Position", spatial.Zero3)
	if err != nil {
		return false, err
	}
	if _, ok := a["ConstructionPosition"]; ok && pos == spatial.Zero3 {
		if pos, err = vec3Attr(a, "ConstructionPosition", spatial.Zero3); err != nil {
			return false, err
		}
	}
	b.Pos = pos
	if b.Orient, err = quatAttr(a, "Quaternion", spatial.IdentityQuat()); err != nil {
		return false, err
	}
	if e := spatial.NormError(b.Orient); e > 1e-10 {
		return false, chk.Err("body %q has non-unit quaternion (|1-|q||=%.3e)", id, e)
	}
	if b.LinVel, err = vec3Attr(a, "LinearVelocity", spatial.Zero3); err != nil {
		return false, err
	}
	if b.AngVel, err = vec3Attr(a, "AngularVelocity", spatial.Zero3); err != nil {
		return false, err
	}
	if _, ok := a["PositionLowBound"]; ok {
		if b.PositionLow, err = vec3Attr(a, "PositionLowBound", spatial.Zero3); err != nil {
			return false, err
		}
		if b.PositionHigh, err = vec3Attr(a, "PositionHighBound", spatial.Zero3); err != nil {
			return false, err
		}
		b.HasPositionBounds = true
	}
	if _, ok := a["LinearVelocityLowBound"]; ok {
		if b.LinVelocityLow, err = vec3Attr(a, "LinearVelocityLowBound", spatial.Zero3); err != nil {
			return false, err
		}
		if b.LinVelocityHigh, err = vec3Attr(a, "LinearVelocityHighBound", spatial.Zero3); err != nil {
			return false, err
		}
		if b.AngVelocityLow, err = vec3Attr(a, "AngularVelocityLowBound", spatial.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}); err != nil {
			return false, err
		}
		if b.AngVelocityHigh, err = vec3Attr(a, "AngularVelocityHighBound", spatial.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}); err != nil {
			return false, err
		}
		b.HasVelBounds = true
	}
	if err := m.Sim.RegisterBody(b); err != nil {
		return false, err
	}
	if a.Bool("Dump", false) {
		registerBodyDump(m.Sim, b)
	}
	return true, nil
}

func (m *Model) loadMarker(a registry.Attributes) (bool, error) {
	id := a.String("ID", "")
	if _, done := m.markers.Get(id); done {
		return true, nil
	}
	var host *body.Body
	if bid := a.String("BodyID", ""); bid != "" && bid != "World" {
		b, ok := m.Sim.Bodies.Get(bid)
		if !ok {
			return false, nil // body not loaded yet, retry
		}
		host = b
	}
	pos, err := vec3Attr(a, "Position", spatial.Zero3)
	if err != nil {
		return false, err
	}
	q, err := quatAttr(a, "Quaternion", spatial.IdentityQuat())
	if err != nil {
		return false, err
	}
	mk := marker.New(id, host, pos, q)
	if err := mk.CheckUnit(1e-10); err != nil {
		return false, err
	}
	return true, m.markers.Add(mk)
}

func jointKindFromString(s string) (body.JointKind, error) {
	switch s {
	case "Hinge":
		return body.Hinge, nil
	case "Universal":
		return body.Universal, nil
	case "Ball":
		return body.Ball, nil
	case "Fixed":
		return body.Fixed, nil
	case "FloatingHinge":
		return body.FloatingHinge, nil
	case "AMotor":
		return body.AMotor, nil
	case "LMotor":
		return body.LMotor, nil
	}
	return 0, chk.Err("invalid joint type %q", s)
}

// hostOrWorld maps a marker's host to a joint-capable body, synthesising
// the fixed world anchor for world markers.
func (m *Model) hostOrWorld(mk *marker.Marker) *body.Body {
	if mk.Body == nil {
		return m.Sim.WorldAnchor()
	}
	return mk.Body
}

func (m *Model) loadJoint(a registry.Attributes) (bool, error) {
	id := a.String("ID", "")
	if _, done := m.Sim.Joints.Get(id); done {
		return true, nil
	}
	kind, err := jointKindFromString(a.String("Type", ""))
	if err != nil {
		return false, err
	}
	m1, ok1 := m.markers.Get(a.String("Body1MarkerID", ""))
	m2, ok2 := m.markers.Get(a.String("Body2MarkerID", ""))
	if !ok1 || !ok2 {
		return false, nil // markers not loaded yet, retry
	}
	b1, b2 := m.hostOrWorld(m1), m.hostOrWorld(m2)
	if b1 == b2 {
		return false, chk.Err("joint %q: markers reference the same body %q", id, b1.Name)
	}
	j := body.NewJoint(id, kind, b1, b2)
	// body-local anchors and axis from the marker poses; the joint axis is
	// marker1's Z basis vector, same convention as the cylinder-wrap axis
	anchor := m1.WorldPos()
	j.Anchor1 = spatial.Rotate(b1.Orient.Conjugate(), anchor.Sub(b1.Pos))
	j.Anchor2 = spatial.Rotate(b2.Orient.Conjugate(), m2.WorldPos().Sub(b2.Pos))
	axisW := m1.AxisWorld(spatial.Vec3{0, 0, 1})
	j.Axis1 = spatial.Rotate(b1.Orient.Conjugate(), axisW)
	j.Axis2 = spatial.Rotate(b2.Orient.Conjugate(), m2.AxisWorld(spatial.Vec3{0, 0, 1}))
	if _, ok := a["LowStop"]; ok {
		if j.LoStop, err = a.Float64("LowStop"); err != nil {
			return false, err
		}
		if j.HiStop, err = a.Float64("HighStop"); err != nil {
			return false, err
		}
		if j.LoStop > j.HiStop {
			return false, chk.Err("joint %q: LowStop %g > HighStop %g", id, j.LoStop, j.HiStop)
		}
		j.HasStops = true
		if v, err := a.Float64("StopCFM"); err == nil {
			j.StopCFM = v
		}
		if v, err := a.Float64("StopERP"); err == nil {
			j.StopERP = v
		}
		if v, err := a.Float64("StopBounce"); err == nil {
			j.StopBounce = v
		}
		if v, err := a.Float64("LoStopTorqueLimit"); err == nil {
			j.LoStopTorqueLimit = v
		}
		if v, err := a.Float64("HiStopTorqueLimit"); err == nil {
			j.HiStopTorqueLimit = v
		}
	}
	if _, ok := a["MotorVelocity"]; ok {
		if j.MotorVel, err = a.Float64("MotorVelocity"); err != nil {
			return false, err
		}
		if j.MotorMaxForce, err = a.Float64("MotorMaxForce"); err != nil {
			return false, err
		}
		j.HasMotor = true
	}
	if v, err := a.Float64("StressLimit"); err == nil {
		j.StressLimit = v
	}
	if w := a.Int("StressWindow", 0); w > 1 {
		j.EnableStopSmoothing(w)
	}
	if fc, err := a.Float64("StressCutoffFrequency"); err == nil {
		j.EnableStressLowPass(fc, m.Sim.Config.StepSize)
	}
	if err := m.Sim.RegisterJoint(j); err != nil {
		return false, err
	}
	if a.Bool("Dump", false) {
		registerJointDump(m.Sim, j)
	}
	return true, nil
}

func (m *Model) loadGeom(a registry.Attributes) (bool, error) {
	id := a.String("ID", "")
	if _, done := m.Sim.Geoms.Get(id); done {
		return true, nil
	}
	var host *body.Body
	bid := a.String("BodyID", "")
	if bid != "" && bid != "World" {
		b, ok := m.Sim.Bodies.Get(bid)
		if !ok {
			return false, nil
		}
		host = b
	}
	mat := geom.Material{}
	if v, err := a.Float64("Mu"); err == nil {
		mat.Mu = v
	}
	if v, err := a.Float64("Rho"); err == nil {
		mat.Rho = v
	}
	if v, err := a.Float64("Bounce"); err == nil {
		mat.Bounce = v
	}
	if v, err := a.Float64("SoftCFM"); err == nil {
		mat.SoftCFM = v
	}
	if v, err := a.Float64("SoftERP"); err == nil {
		mat.SoftERP = v
	}
	var g *geom.Geom
	switch kind := a.String("Type", ""); kind {
	case "Sphere":
		r, err := a.Float64("Radius")
		if err != nil {
			return false, err
		}
		g = geom.NewSphere(id, host, r, mat)
	case "Box":
		dims, err := a.Float64Slice("Dimensions")
		if err != nil {
			return false, err
		}
		if len(dims) != 3 {
			return false, chk.Err("geom %q: Box Dimensions needs 3 values", id)
		}
		g = geom.NewBox(id, host, dims[0], dims[1], dims[2], mat)
	case "CappedCylinder":
		r, err := a.Float64("Radius")
		if err != nil {
			return false, err
		}
		l, err := a.Float64("Length")
		if err != nil {
			return false, err
		}
		g = &geom.Geom{Name: id, Body: host, Kind: geom.CappedCylinder, Radius: r, Length: l, Mat: mat, LocalOrient: spatial.IdentityQuat()}
	case "Plane":
		abcd, err := a.Float64Slice("ABCD")
		if err != nil {
			return false, err
		}
		if len(abcd) != 4 {
			return false, chk.Err("geom %q: Plane ABCD needs 4 values", id)
		}
		n := spatial.Vec3{abcd[0], abcd[1], abcd[2]}
		l := n.Len()
		if l < 1e-300 {
			return false, chk.Err("geom %q: Plane normal is zero", id)
		}
		g = geom.NewPlane(id, n, abcd[3]/l, mat)
	case "Convex":
		verts, err := a.Float64Slice("Vertices")
		if err != nil {
			return false, err
		}
		if len(verts)%3 != 0 || len(verts) < 12 {
			return false, chk.Err("geom %q: Convex Vertices needs 3N values, N>=4", id)
		}
		g = &geom.Geom{Name: id, Body: host, Kind: geom.Convex, Mat: mat, LocalOrient: spatial.IdentityQuat()}
		for i := 0; i+2 < len(verts); i += 3 {
			g.Hull = append(g.Hull, spatial.Vec3{verts[i], verts[i+1], verts[i+2]})
		}
	case "Trimesh":
		verts, err := a.Float64Slice("Vertices")
		if err != nil {
			return false, err
		}
		tris, err := a.Float64Slice("Triangles")
		if err != nil {
			return false, err
		}
		if len(verts)%3 != 0 || len(tris)%3 != 0 {
			return false, chk.Err("geom %q: Trimesh Vertices/Triangles need 3N values", id)
		}
		g = &geom.Geom{Name: id, Body: host, Kind: geom.Trimesh, Mat: mat, LocalOrient: spatial.IdentityQuat()}
		for i := 0; i+2 < len(verts); i += 3 {
			g.MeshVertices = append(g.MeshVertices, spatial.Vec3{verts[i], verts[i+1], verts[i+2]})
		}
		for i := 0; i+2 < len(tris); i += 3 {
			g.MeshTriangles = append(g.MeshTriangles, [3]int{int(tris[i]), int(tris[i+1]), int(tris[i+2])})
		}
	default:
		return false, chk.Err("geom %q: invalid type %q", id, kind)
	}
	var err error
	if g.LocalPos, err = vec3Attr(a, "Position", spatial.Zero3); err != nil {
		return false, err
	}
	if g.LocalOrient, err = quatAttr(a, "Quaternion", spatial.IdentityQuat()); err != nil {
		return false, err
	}
	g.Abort = a.Bool("Abort", false)
	g.Adhesion = a.Bool("Adhesion", false)
	if excl := a.StringList("ExcludeIDList"); len(excl) > 0 {
		g.ExcludeIDs = make(map[string]bool, len(excl))
		for _, x := range excl {
			g.ExcludeIDs[x] = true
		}
	}
	g.ContactGroup = a.String("ContactGroup", "")
	if g.ContactGroup == "" {
		if host != nil {
			g.ContactGroup = host.Name
		} else {
			g.ContactGroup = "environment"
		}
	}
	return true, m.Sim.Geoms.Add(g)
}

func (m *Model) loadStrap(a registry.Attributes) (bool, error) {
	id := a.String("ID", "")
	if _, done := m.Sim.Straps.Get(id); done {
		return true, nil
	}
	origin, ok1 := m.markers.Get(a.String("OriginMarkerID", ""))
	insertion, ok2 := m.markers.Get(a.String("InsertionMarkerID", ""))
	if !ok1 || !ok2 {
		return false, nil
	}
	var st *strap.Strap
	switch kind := a.String("Type", ""); kind {
	case "TwoPoint":
		st = strap.NewTwoPoint(id, origin, insertion)
	case "NPoint":
		pts := []*marker.Marker{origin}
		for _, vid := range a.StringList("ViaPointMarkerIDList") {
			vm, ok := m.markers.Get(vid)
			if !ok {
				return false, nil
			}
			pts = append(pts, vm)
		}
		pts = append(pts, insertion)
		st = strap.NewNPoint(id, pts)
	case "CylinderWrap":
		cyl, ok := m.markers.Get(a.String("Cylinder1MarkerID", ""))
		if !ok {
			return false, nil
		}
		r, err := a.Float64("Cylinder1Radius")
		if err != nil {
			return false, err
		}
		st = strap.NewCylinderWrap(id, origin, insertion, cyl, r, a.Int("WrapSegments", 8))
	case "TwoCylinderWrap":
		c1, ok1 := m.markers.Get(a.String("Cylinder1MarkerID", ""))
		c2, ok2 := m.markers.Get(a.String("Cylinder2MarkerID", ""))
		if !ok1 || !ok2 {
			return false, nil
		}
		r1, err := a.Float64("Cylinder1Radius")
		if err != nil {
			return false, err
		}
		r2, err := a.Float64("Cylinder2Radius")
		if err != nil {
			return false, err
		}
		// the two wrap axes must agree to within a small angle tolerance
		a1 := c1.AxisWorld(spatial.Vec3{0, 0, 1})
		a2 := c2.AxisWorld(spatial.Vec3{0, 0, 1})
		if math.Abs(a1.Dot(a2)) < math.Cos(1e-3) {
			return false, chk.Err("strap %q: cylinder axes are not parallel", id)
		}
		st = strap.NewTwoCylinderWrap(id, origin, insertion, c1, c2, r1, r2, a.Int("WrapSegments", 8))
	default:
		return false, chk.Err("strap %q: invalid type %q", id, kind)
	}
	st.Update(0)
	if st.Length <= 0 {
		return false, chk.Err("strap %q has zero length at load", id)
	}
	return true, m.Sim.Straps.Add(st)
}

func (m *Model) loadMuscle(a registry.Attributes) (bool, error) {
	id := a.String("ID", "")
	if _, done := m.Sim.Muscles.Get(id); done {
		return true, nil
	}
	st, ok := m.Sim.Straps.Get(a.String("StrapID", ""))
	if !ok {
		return false, nil
	}
	fMax, err := a.Float64("FMax")
	if err != nil {
		// PCA x force-per-area fallback (spec.md §4.5.1)
		pca, e1 := a.Float64("PCA")
		fpa, e2 := a.Float64("ForcePerUnitArea")
		if e1 != nil || e2 != nil {
			if a.String("Type", "") != "DampedSpring" {
				return false, err
			}
			fMax = 0
		} else {
			fMax = pca * fpa
		}
	}
	var mu *muscle.Muscle
	switch kind := a.String("Type", ""); kind {
	case "MinettiAlexander":
		vMax, err := a.Float64("VMax")
		if err != nil {
			return false, err
		}
		k, err := a.Float64("K")
		if err != nil {
			return false, err
		}
		mu = muscle.NewMinettiAlexander(id, st, fMax, vMax, k)
	case "MinettiAlexanderComplete":
		vMax, err := a.Float64("VMax")
		if err != nil {
			return false, err
		}
		k, err := a.Float64("K")
		if err != nil {
			return false, err
		}
		tendon, err := a.Float64("TendonLength")
		if err != nil {
			return false, err
		}
		lOpt, err := a.Float64("OptimumLength")
		if err != nil {
			return false, err
		}
		width, err := a.Float64("Width")
		if err != nil {
			return false, err
		}
		mu = muscle.NewMinettiAlexanderComplete(id, st, fMax, vMax, k, tendon, lOpt, width)
		if v, err := a.Float64("SerialStiffness"); err == nil {
			mu.SEStiffness = v
		}
		if v, err := a.Float64("ParallelStiffness"); err == nil {
			mu.PEStiffness = v
		}
		mu.SELaw = a.String("SerialLaw", "linear")
		mu.PELaw = a.String("ParallelLaw", "linear")
		// a bare Damping attribute applies to both elements; the
		// per-element attributes override it
		if v, err := a.Float64("Damping"); err == nil {
			mu.SEDamping, mu.PEDamping = v, v
		}
		if v, err := a.Float64("SerialDamping"); err == nil {
			mu.SEDamping = v
		}
		if v, err := a.Float64("ParallelDamping"); err == nil {
			mu.PEDamping = v
		}
		if v, err := a.Float64("TActivation"); err == nil {
			mu.TauAct = v
			mu.UseKinetics = true
		}
		if v, err := a.Float64("TDeactivation"); err == nil {
			mu.TauDeact = v
		}
		if v, err := a.Float64("FastTwitchProportion"); err == nil {
			mu.FastTwitchFrac = v
		}
		if v, err := a.Float64("MinimumActivation"); err == nil {
			mu.AlphaMin = v
		}
		if !a.Bool("ActivationKinetics", true) {
			mu.UseKinetics = false
		}
	case "DampedSpring":
		slack, err := a.Float64("UnloadedLength")
		if err != nil {
			return false, err
		}
		young, err := a.Float64("YoungsModulus")
		if err != nil {
			return false, err
		}
		area, err := a.Float64("Area")
		if err != nil {
			return false, err
		}
		damping, err := a.Float64("Damping")
		if err != nil {
			return false, err
		}
		breaking, err := a.Float64("BreakingStrain")
		if err != nil {
			return false, err
		}
		mu = muscle.NewDampedSpring(id, st, slack, young, area, damping, breaking)
	default:
		return false, chk.Err("muscle %q: invalid type %q", id, kind)
	}
	if err := m.Sim.Muscles.Add(mu); err != nil {
		return false, err
	}
	if a.Bool("Dump", false) {
		registerMuscleDump(m.Sim, mu)
	}
	return true, nil
}

func (m *Model) loadFluidSac(a registry.Attributes) (bool, error) {
	id := a.String("ID", "")
	if _, done := m.Sim.FluidSacs.Get(id); done {
		return true, nil
	}
	var marks []*marker.Marker
	for _, mid := range a.StringList("MarkerIDList") {
		mk, ok := m.markers.Get(mid)
		if !ok {
			return false, nil
		}
		marks = append(marks, mk)
	}
	if len(marks) < 4 {
		return false, chk.Err("fluidsac %q needs at least 4 markers", id)
	}
	idx, err := a.Float64Slice("TriangleList")
	if err != nil {
		return false, err
	}
	if len(idx)%3 != 0 {
		return false, chk.Err("fluidsac %q: TriangleList length must be a multiple of 3", id)
	}
	var tris []fluidsac.Triangle
	for i := 0; i+2 < len(idx); i += 3 {
		tris = append(tris, fluidsac.Triangle{int(idx[i]), int(idx[i+1]), int(idx[i+2])})
	}
	var fs *fluidsac.FluidSac
	switch kind := a.String("Type", ""); kind {
	case "IdealGas":
		nrt, err := a.Float64("AmountOfSubstanceTimesRT")
		if err != nil {
			return false, err
		}
		pExt, err := a.Float64("ExternalPressure")
		if err != nil {
			return false, err
		}
		fs = fluidsac.NewIdealGas(id, marks, tris, nrt, pExt)
	case "Incompressible":
		k, err := a.Float64("BulkModulus")
		if err != nil {
			return false, err
		}
		var d, v0, p0 float64
		if v, err := a.Float64("BulkDamping"); err == nil {
			d = v
		}
		if v, err := a.Float64("RestVolume"); err == nil {
			v0 = v
		}
		if v, err := a.Float64("RestPressure"); err == nil {
			p0 = v
		}
		fs = fluidsac.NewIncompressible(id, marks, tris, k, d, v0, p0)
	default:
		return false, chk.Err("fluidsac %q: invalid type %q", id, kind)
	}
	if err := fs.CheckMesh(); err != nil {
		return false, err
	}
	return true, m.Sim.FluidSacs.Add(fs)
}

func axisFromString(s string) driver.Axis {
	switch s {
	case "X":
		return driver.AxisX
	case "Y":
		return driver.AxisY
	default:
		return driver.AxisZ
	}
}

// findDrivable resolves a fan-out target id against muscles then
// controllers (the two drivable families), per spec.md §4.2's fan-out
// contract ("targets missing at load fail the load with a precise
// message" — here, by keeping the driver pending until the fixed-point
// gives up and names it).
func (m *Model) findDrivable(id string) (driver.Drivable, bool) {
	if mu, ok := m.Sim.Muscles.Get(id); ok {
		return mu, true
	}
	for _, c := range m.Sim.Controllers {
		if c.Name == id {
			return c, true
		}
	}
	return nil, false
}

func (m *Model) loadDriver(a registry.Attributes) (bool, error) {
	id := a.String("ID", "")
	for _, d := range m.Sim.Drivers {
		if d.Name == id {
			return true, nil
		}
	}
	var targets []driver.Drivable
	for _, tid := range a.StringList("TargetIDList") {
		t, ok := m.findDrivable(tid)
		if !ok {
			return false, nil
		}
		targets = append(targets, t)
	}
	lo, hi := math.Inf(-1), math.Inf(1)
	if r, err := a.Float64Slice("DriverRange"); err == nil && len(r) == 2 {
		lo, hi = r[0], r[1]
	}

	var like sim.DriverLike
	switch kind := a.String("Type", ""); kind {
	case "Fixed":
		v, err := a.Float64("Value")
		if err != nil {
			return false, err
		}
		d := driver.NewFixed(id, v, lo, hi)
		d.Targets = targets
		like = basicDriverLike(d)
	case "Step":
		times, err := a.Float64Slice("ChangeTimes")
		if err != nil {
			return false, err
		}
		values, err := a.Float64Slice("Values")
		if err != nil {
			return false, err
		}
		if len(times) != len(values) {
			return false, chk.Err("driver %q: ChangeTimes and Values differ in length", id)
		}
		d := driver.NewStep(id, times, values, a.Bool("LinearInterpolation", false), lo, hi)
		d.Targets = targets
		like = basicDriverLike(d)
	case "Cyclic":
		durations, err := a.Float64Slice("Durations")
		if err != nil {
			return false, err
		}
		values, err := a.Float64Slice("Values")
		if err != nil {
			return false, err
		}
		if len(durations) != len(values) {
			return false, chk.Err("driver %q: Durations and Values differ in length", id)
		}
		var phase float64
		if v, err := a.Float64("PhaseDelay"); err == nil {
			phase = v
		}
		d := driver.NewCyclic(id, durations, values, phase, lo, hi)
		d.Targets = targets
		like = basicDriverLike(d)
	case "StackedBoxcar":
		period, err := a.Float64("CycleTime")
		if err != nil {
			return false, err
		}
		delays, err := a.Float64Slice("Delays")
		if err != nil {
			return false, err
		}
		widths, err := a.Float64Slice("Widths")
		if err != nil {
			return false, err
		}
		heights, err := a.Float64Slice("Heights")
		if err != nil {
			return false, err
		}
		if len(delays) != len(widths) || len(widths) != len(heights) {
			return false, chk.Err("driver %q: Delays/Widths/Heights differ in length", id)
		}
		pulses := make([]driver.BoxcarPulse, len(delays))
		for i := range delays {
			pulses[i] = driver.BoxcarPulse{StartPhase: delays[i], Width: widths[i], Height: heights[i]}
		}
		d := driver.NewStackedBoxcar(id, period, pulses, lo, hi)
		d.Targets = targets
		like = basicDriverLike(d)
	case "MarkerPosition":
		target, ok := m.markers.Get(a.String("MarkerID", ""))
		if !ok {
			return false, nil
		}
		var ref *marker.Marker
		if rid := a.String("ReferenceMarkerID", ""); rid != "" {
			if ref, ok = m.markers.Get(rid); !ok {
				return false, nil
			}
		}
		d := driver.NewMarkerPositionDriver(id, target, ref, axisFromString(a.String("Axis", "X")), a.Bool("Velocity", false), lo, hi)
		d.Targets = targets
		like = sim.DriverLike{
			Name:    id,
			Update:  func(t, h float64, step int) float64 { return d.Update(t, h, step) },
			Publish: d.Publish,
			Period:  d.Period,
		}
	case "MarkerEllipse":
		ref, ok := m.markers.Get(a.String("ReferenceMarkerID", ""))
		if !ok {
			return false, nil
		}
		ra, err := a.Float64("RadiusA")
		if err != nil {
			return false, err
		}
		rb, err := a.Float64("RadiusB")
		if err != nil {
			return false, err
		}
		period, err := a.Float64("Period")
		if err != nil {
			return false, err
		}
		var phase float64
		if v, err := a.Float64("Phase"); err == nil {
			phase = v
		}
		d := driver.NewMarkerEllipseDriver(id, ref, ra, rb, period, phase, driver.AxisX, driver.AxisY, axisFromString(a.String("OutputAxis", "X")), lo, hi)
		d.Targets = targets
		like = sim.DriverLike{
			Name:    id,
			Update:  func(t, h float64, step int) float64 { return d.Update(t, step) },
			Publish: d.Publish,
			Period:  func() float64 { return d.Period },
		}
	case "Tegotae":
		omega, err := a.Float64("Omega")
		if err != nil {
			return false, err
		}
		sigma, err := a.Float64("Sigma")
		if err != nil {
			return false, err
		}
		g, ok := m.Sim.Geoms.Get(a.String("ContactGeomID", ""))
		if !ok {
			return false, nil
		}
		d := driver.NewTegotaeDriver(id, omega, sigma, func() float64 { return g.LastContactForce }, lo, hi)
		d.Targets = targets
		like = sim.DriverLike{
			Name:    id,
			Update:  func(t, h float64, step int) float64 { return d.Update(h, step) },
			Publish: d.Publish,
			Period:  d.Period,
		}
	case "TwoHingeIK", "ThreeHingeIK":
		base, ok1 := m.markers.Get(a.String("BaseMarkerID", ""))
		end, ok2 := m.markers.Get(a.String("EndEffectorMarkerID", ""))
		tgt, ok3 := m.markers.Get(a.String("TargetMarkerID", ""))
		if !ok1 || !ok2 || !ok3 {
			return false, nil
		}
		l1, err := a.Float64("Link1Length")
		if err != nil {
			return false, err
		}
		l2, err := a.Float64("Link2Length")
		if err != nil {
			return false, err
		}
		if kind == "TwoHingeIK" {
			d := driver.NewTwoHingeIKDriver(id, base, end, tgt, l1, l2)
			d.OutputJoint = a.Int("OutputJoint", 0)
			d.Min, d.Max = lo, hi
			d.Targets = targets
			like = sim.DriverLike{
				Name:    id,
				Update:  func(t, h float64, step int) float64 { return d.Update(step) },
				Publish: d.Publish,
				Period:  d.Period,
			}
		} else {
			l3, err := a.Float64("Link3Length")
			if err != nil {
				return false, err
			}
			d := driver.NewThreeHingeIKDriver(id, base, end, tgt, l1, l2, l3)
			d.OutputJoint = a.Int("OutputJoint", 0)
			d.Min, d.Max = lo, hi
			d.Targets = targets
			like = sim.DriverLike{
				Name:    id,
				Update:  func(t, h float64, step int) float64 { return d.Update(step) },
				Publish: d.Publish,
				Period:  d.Period,
			}
		}
	default:
		return false, chk.Err("driver %q: invalid type %q", id, kind)
	}
	m.Sim.Drivers = append(m.Sim.Drivers, like)
	return true, nil
}

func basicDriverLike(d *driver.Driver) sim.DriverLike {
	return sim.DriverLike{
		Name:    d.Name,
		Update:  func(t, h float64, step int) float64 { return d.Update(t, step) },
		Publish: d.Publish,
		Period:  d.Period,
	}
}

func (m *Model) loadController(a registry.Attributes) (bool, error) {
	id := a.String("ID", "")
	for _, c := range m.Sim.Controllers {
		if c.Name == id {
			return true, nil
		}
	}
	kp, err := a.Float64("Kp")
	if err != nil {
		return false, err
	}
	ki, err := a.Float64("Ki")
	if err != nil {
		return false, err
	}
	kd, err := a.Float64("Kd")
	if err != nil {
		return false, err
	}
	lo, hi := math.Inf(-1), math.Inf(1)
	if r, err := a.Float64Slice("DriverRange"); err == nil && len(r) == 2 {
		lo, hi = r[0], r[1]
	}
	var c *controller.Controller
	switch kind := a.String("Type", ""); kind {
	case "PIDErrorIn":
		c = controller.NewPIDErrorIn(id, kp, ki, kd, lo, hi)
	case "PIDMuscleLength":
		mu, ok := m.Sim.Muscles.Get(a.String("MuscleID", ""))
		if !ok {
			return false, nil
		}
		c = controller.NewPIDMuscleLength(id, mu, kp, ki, kd, lo, hi)
	default:
		return false, chk.Err("controller %q: invalid type %q", id, kind)
	}
	for _, tid := range a.StringList("TargetIDList") {
		t, ok := m.findDrivable(tid)
		if !ok {
			return false, nil
		}
		c.AddTarget(t)
	}
	m.Sim.Controllers = append(m.Sim.Controllers, c)
	return true, nil
}

// channelSource builds the scalar channel a DATATARGET or REPORTER reads,
// covering the channel list of spec.md §4.9: body position/velocity/
// acceleration components, marker position (world or reference-marker
// frame) and velocity, marker-to-marker distance and relative angle,
// quaternion angle error, vector norm error, muscle force/length, joint
// angle, and contact count.
func (m *Model) channelSource(a registry.Attributes) (datatarget.Source, bool, error) {
	kind := a.String("Type", "")
	targetID := a.String("TargetID", "")
	target2ID := a.String("TargetID2", "")
	axis := axisFromString(a.String("Axis", "X"))
	switch kind {
	case "BodyPosition":
		b, ok := m.Sim.Bodies.Get(targetID)
		if !ok {
			return nil, false, nil
		}
		return datatarget.BodyPositionChannel(b, axis), true, nil
	case "BodyVelocity":
		b, ok := m.Sim.Bodies.Get(targetID)
		if !ok {
			return nil, false, nil
		}
		return datatarget.BodyVelocityChannel(b, axis), true, nil
	case "BodyAcceleration":
		b, ok := m.Sim.Bodies.Get(targetID)
		if !ok {
			return nil, false, nil
		}
		return datatarget.BodyAccelerationChannel(b, axis, m.Sim.Config.StepSize), true, nil
	case "MarkerPosition":
		mk, ok := m.markers.Get(targetID)
		if !ok {
			return nil, false, nil
		}
		var ref *marker.Marker
		if rid := a.String("ReferenceMarkerID", ""); rid != "" {
			if ref, ok = m.markers.Get(rid); !ok {
				return nil, false, nil
			}
		}
		return datatarget.MarkerPositionChannel(mk, ref, axis), true, nil
	case "MarkerVelocity":
		mk, ok := m.markers.Get(targetID)
		if !ok {
			return nil, false, nil
		}
		return datatarget.MarkerVelocityChannel(mk, axis), true, nil
	case "MarkerDistance":
		m1, ok1 := m.markers.Get(targetID)
		m2, ok2 := m.markers.Get(target2ID)
		if !ok1 || !ok2 {
			return nil, false, nil
		}
		return datatarget.MarkerDistanceChannel(m1, m2), true, nil
	case "MarkerRelativeAngle":
		m1, ok1 := m.markers.Get(targetID)
		m2, ok2 := m.markers.Get(target2ID)
		if !ok1 || !ok2 {
			return nil, false, nil
		}
		return datatarget.MarkerRelativeAngleChannel(m1, m2), true, nil
	case "QuaternionAngle":
		m1, ok1 := m.markers.Get(targetID)
		m2, ok2 := m.markers.Get(target2ID)
		if !ok1 || !ok2 {
			return nil, false, nil
		}
		return datatarget.QuaternionAngleChannel(m1, m2), true, nil
	case "VectorNormError":
		mk, ok := m.markers.Get(targetID)
		if !ok {
			return nil, false, nil
		}
		refVec, err := a.Float64Slice("ReferenceVector")
		if err != nil {
			return nil, false, err
		}
		if len(refVec) != 3 {
			return nil, false, chk.Err("ReferenceVector needs 3 values, has %d", len(refVec))
		}
		ref := spatial.Vec3{refVec[0], refVec[1], refVec[2]}
		return datatarget.VectorNormErrorChannel(mk.WorldPos, ref), true, nil
	case "MuscleForce":
		mu, ok := m.Sim.Muscles.Get(targetID)
		if !ok {
			return nil, false, nil
		}
		return datatarget.MuscleForceChannel(mu), true, nil
	case "MuscleLength":
		mu, ok := m.Sim.Muscles.Get(targetID)
		if !ok {
			return nil, false, nil
		}
		return datatarget.MuscleLengthChannel(mu), true, nil
	case "JointAngle":
		j, ok := m.Sim.Joints.Get(targetID)
		if !ok {
			return nil, false, nil
		}
		return datatarget.JointAngleChannel(j), true, nil
	case "ContactCount":
		g, ok := m.Sim.Geoms.Get(targetID)
		if !ok {
			return nil, false, nil
		}
		return datatarget.ContactCountChannel(func() int { return g.LastContactCount }), true, nil
	}
	return nil, false, chk.Err("invalid channel type %q", kind)
}

func (m *Model) loadDataTarget(a registry.Attributes) (bool, error) {
	id := a.String("ID", "")
	if _, done := m.Sim.DataTargets.Get(id); done {
		return true, nil
	}
	source, ok, err := m.channelSource(a)
	if err != nil {
		return false, chk.Err("data target %q: %v", id, err)
	}
	if !ok {
		return false, nil
	}
	times, err := a.Float64Slice("TargetTimes")
	if err != nil {
		return false, err
	}
	values, err := a.Float64Slice("TargetValues")
	if err != nil {
		return false, err
	}
	if len(times) != len(values) {
		return false, chk.Err("data target %q: TargetTimes and TargetValues differ in length", id)
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return false, chk.Err("data target %q: TargetTimes must be strictly ascending", id)
		}
	}
	policy := datatarget.Discrete
	if a.String("MatchPolicy", "Discrete") == "Continuous" {
		policy = datatarget.Continuous
	}
	match := datatarget.Linear
	if a.String("MatchType", "Linear") == "Square" {
		match = datatarget.Square
	}
	var intercept, slope float64
	if v, err := a.Float64("Intercept"); err == nil {
		intercept = v
	}
	slope = 1
	if v, err := a.Float64("Slope"); err == nil {
		slope = v
	}
	dt := datatarget.New(id, times, values, policy, match, intercept, slope, source)
	if v, err := a.Float64("AbortThreshold"); err == nil {
		dt.SetAbort(v)
	}
	return true, m.Sim.DataTargets.Add(dt)
}

func (m *Model) loadReporter(a registry.Attributes) (bool, error) {
	id := a.String("ID", "")
	source, ok, err := m.channelSource(a)
	if err != nil {
		return false, chk.Err("reporter %q: %v", id, err)
	}
	if !ok {
		return false, nil
	}
	s := m.Sim
	s.RegisterDump(id, []string{"time", "value"}, func() []float64 {
		return []float64{s.Time, source(s.Time)}
	})
	return true, nil
}

func (m *Model) loadWarehouse(a registry.Attributes) (bool, error) {
	id := a.String("ID", "")
	if m.Sim.Warehouse != nil {
		return true, nil
	}
	w := sim.NewWarehouse(id)
	for _, row := range strings.Split(a.String("StateVectors", ""), ";") {
		row = strings.TrimSpace(row)
		if row == "" {
			continue
		}
		w.Add(gio.SplitFloats(row))
	}
	m.Sim.Warehouse = w
	return true, nil
}

// validate runs the cross-entity load-time checks of spec.md §7 that need
// every entity resolved first.
func (m *Model) validate() error {
	var errs []error
	for _, j := range m.Sim.Joints.All() {
		if j.Body1 == j.Body2 {
			errs = append(errs, chk.Err("joint %q markers reference the same body", j.Name))
		}
	}
	return sim.AggregateErrors(errs)
}

func registerBodyDump(s *sim.Simulation, b *body.Body) {
	s.RegisterDump(b.Name, []string{
		"time", "px", "py", "pz", "qw", "qx", "qy", "qz",
		"vx", "vy", "vz", "wx", "wy", "wz",
	}, func() []float64 {
		return []float64{
			s.Time,
			b.Pos.X(), b.Pos.Y(), b.Pos.Z(),
			b.Orient.W, b.Orient.V.X(), b.Orient.V.Y(), b.Orient.V.Z(),
			b.LinVel.X(), b.LinVel.Y(), b.LinVel.Z(),
			b.AngVel.X(), b.AngVel.Y(), b.AngVel.Z(),
		}
	})
}

func registerJointDump(s *sim.Simulation, j *body.Joint) {
	s.RegisterDump(j.Name, []string{"time", "angle", "angleRate", "stopTorque", "stress"}, func() []float64 {
		return []float64{s.Time, j.HingeAngle(), j.HingeAngularVelocity(), j.LastStopTorque(), j.LastStress()}
	})
}

func registerMuscleDump(s *sim.Simulation, mu *muscle.Muscle) {
	s.RegisterDump(mu.Name, []string{"time", "activation", "tension", "length", "velocity"}, func() []float64 {
		return []float64{s.Time, mu.Activation, mu.Tension, mu.Strap.Length, mu.Strap.Velocity}
	})
}
