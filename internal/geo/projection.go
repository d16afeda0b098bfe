// Package geo converts projected planar coordinates to WGS84 geographic
// coordinates and back. Fix records arrive in a national projected CRS
// (meters); everything downstream that draws a map wants latitude/longitude.
package geo

import (
	"fmt"
	"math"
)

// Supported projected coordinate reference systems.
const (
	// EPSGStereo70 is the Romanian national grid (Stereo70): an oblique
	// stereographic projection on the Krasovsky 1940 ellipsoid.
	EPSGStereo70 = "EPSG:3844"

	// EPSGPolandCS92 is the Polish national grid (CS92): a transverse
	// Mercator projection on the GRS80 ellipsoid.
	EPSGPolandCS92 = "EPSG:2180"
)

type projectionKind int

const (
	obliqueStereographic projectionKind = iota
	transverseMercator
)

// Projection converts between projected easting/northing in meters and WGS84
// decimal degrees. The zero value is not usable; construct via ByCode.
// A Projection is immutable and safe for concurrent use.
type Projection struct {
	code string
	kind projectionKind

	a  float64 // semi-major axis
	e  float64 // first eccentricity
	e2 float64 // e squared

	lat0 float64 // latitude of natural origin (radians)
	lon0 float64 // longitude of natural origin (radians)
	k0   float64 // scale factor at natural origin
	fe   float64 // false easting
	fn   float64 // false northing

	// Oblique stereographic precomputed constants (EPSG method 9809).
	osN      float64
	osC      float64
	osR      float64
	osChi0   float64
	osLam0   float64
	osSinχ0  float64
	osCosχ0  float64
	osG, osH float64

	// Transverse Mercator precomputed constants.
	tmEp2 float64 // second eccentricity squared
	tmM0  float64 // meridional arc at lat0
	tmE1  float64
}

// ByCode returns the Projection for a supported EPSG code.
func ByCode(code string) (Projection, error) {
	switch code {
	case EPSGStereo70:
		// Krasovsky 1940, Stereo70 parameters.
		return newObliqueStereographic(
			6378245.0, 1/298.3,
			deg2rad(46), deg2rad(25),
			0.99975, 500000, 500000,
			code,
		), nil
	case EPSGPolandCS92:
		// GRS80, CS92 parameters.
		return newTransverseMercator(
			6378137.0, 1/298.257222101,
			0, deg2rad(19),
			0.9993, 500000, -5300000,
			code,
		), nil
	default:
		return Projection{}, fmt.Errorf("unsupported projection code %q (supported: %s, %s)", code, EPSGStereo70, EPSGPolandCS92)
	}
}

// MustByCode is ByCode for known-good codes; panics otherwise.
func MustByCode(code string) Projection {
	p, err := ByCode(code)
	if err != nil {
		panic(err)
	}
	return p
}

// Code returns the EPSG code this projection was built from.
func (p Projection) Code() string { return p.code }

func newObliqueStereographic(a, f, lat0, lon0, k0, fe, fn float64, code string) Projection {
	p := Projection{
		code: code, kind: obliqueStereographic,
		a: a, e2: 2*f - f*f,
		lat0: lat0, lon0: lon0, k0: k0, fe: fe, fn: fn,
	}
	p.e = math.Sqrt(p.e2)

	sin0 := math.Sin(lat0)
	cos0 := math.Cos(lat0)
	rho0 := a * (1 - p.e2) / math.Pow(1-p.e2*sin0*sin0, 1.5)
	nu0 := a / math.Sqrt(1-p.e2*sin0*sin0)
	p.osR = math.Sqrt(rho0 * nu0)
	p.osN = math.Sqrt(1 + p.e2*math.Pow(cos0, 4)/(1-p.e2))

	s1 := (1 + sin0) / (1 - sin0)
	s2 := (1 - p.e*sin0) / (1 + p.e*sin0)
	w1 := math.Pow(s1*math.Pow(s2, p.e), p.osN)
	sinχ0 := (w1 - 1) / (w1 + 1)
	p.osC = (p.osN + sin0) * (1 - sinχ0) / ((p.osN - sin0) * (1 + sinχ0))
	w2 := p.osC * w1
	p.osSinχ0 = (w2 - 1) / (w2 + 1)
	p.osChi0 = math.Asin(p.osSinχ0)
	p.osCosχ0 = math.Cos(p.osChi0)
	p.osLam0 = lon0

	p.osG = 2 * p.osR * k0 * math.Tan(math.Pi/4-p.osChi0/2)
	p.osH = 4*p.osR*k0*math.Tan(p.osChi0) + p.osG
	return p
}

func newTransverseMercator(a, f, lat0, lon0, k0, fe, fn float64, code string) Projection {
	p := Projection{
		code: code, kind: transverseMercator,
		a: a, e2: 2*f - f*f,
		lat0: lat0, lon0: lon0, k0: k0, fe: fe, fn: fn,
	}
	p.e = math.Sqrt(p.e2)
	p.tmEp2 = p.e2 / (1 - p.e2)
	p.tmM0 = p.meridionalArc(lat0)
	sq := math.Sqrt(1 - p.e2)
	p.tmE1 = (1 - sq) / (1 + sq)
	return p
}

// Inverse converts projected easting/northing in meters to WGS84 latitude and
// longitude in decimal degrees. Inputs that are non-finite, or that unproject
// to something outside the valid geographic range, yield (NaN, NaN) rather
// than an error: a bad fix row is dropped by the caller, never fatal.
func (p Projection) Inverse(x, y float64) (lat, lng float64) {
	if !isFinite(x) || !isFinite(y) {
		return math.NaN(), math.NaN()
	}
	switch p.kind {
	case obliqueStereographic:
		lat, lng = p.osInverse(x, y)
	case transverseMercator:
		lat, lng = p.tmInverse(x, y)
	}
	if !validGeographic(lat, lng) {
		return math.NaN(), math.NaN()
	}
	return lat, lng
}

// Forward converts WGS84 latitude/longitude in decimal degrees to projected
// easting/northing in meters. Invalid input yields (NaN, NaN).
func (p Projection) Forward(lat, lng float64) (x, y float64) {
	if !validGeographic(lat, lng) {
		return math.NaN(), math.NaN()
	}
	switch p.kind {
	case obliqueStereographic:
		return p.osForward(deg2rad(lat), deg2rad(lng))
	case transverseMercator:
		return p.tmForward(deg2rad(lat), deg2rad(lng))
	}
	return math.NaN(), math.NaN()
}

// Valid reports whether a converted coordinate pair is usable. Inverse flags
// failures with NaN, so this is a NaN check on both components.
func Valid(lat, lng float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lng)
}

// Oblique stereographic, EPSG method 9809.

func (p Projection) osForward(phi, lam float64) (x, y float64) {
	sinφ := math.Sin(phi)
	sa := (1 + sinφ) / (1 - sinφ)
	sb := (1 - p.e*sinφ) / (1 + p.e*sinφ)
	w := p.osC * math.Pow(sa*math.Pow(sb, p.e), p.osN)
	χ := math.Asin((w - 1) / (w + 1))
	Λ := p.osN*(lam-p.osLam0) + p.osLam0

	sinχ := math.Sin(χ)
	cosχ := math.Cos(χ)
	dΛ := Λ - p.osLam0
	b := 1 + sinχ*p.osSinχ0 + cosχ*p.osCosχ0*math.Cos(dΛ)
	x = p.fe + 2*p.osR*p.k0*cosχ*math.Sin(dΛ)/b
	y = p.fn + 2*p.osR*p.k0*(sinχ*p.osCosχ0-cosχ*p.osSinχ0*math.Cos(dΛ))/b
	return x, y
}

func (p Projection) osInverse(x, y float64) (lat, lng float64) {
	de := x - p.fe
	dn := y - p.fn

	i := math.Atan2(de, p.osH+dn)
	j := math.Atan2(de, p.osG-dn) - i
	χ := p.osChi0 + 2*math.Atan((dn-de*math.Tan(j/2))/(2*p.osR*p.k0))
	Λ := j + 2*i + p.osLam0
	lam := (Λ-p.osLam0)/p.osN + p.osLam0

	// Recover the geodetic latitude from the conformal latitude by
	// iterating on the isometric latitude.
	ψ := math.Log((1+math.Sin(χ))/(p.osC*(1-math.Sin(χ)))) / (2 * p.osN)
	phi := 2*math.Atan(math.Exp(ψ)) - math.Pi/2
	for range 25 {
		sinφ := math.Sin(phi)
		ψi := math.Log(math.Tan(phi/2+math.Pi/4) * math.Pow((1-p.e*sinφ)/(1+p.e*sinφ), p.e/2))
		next := phi - (ψi-ψ)*math.Cos(phi)*(1-p.e2*sinφ*sinφ)/(1-p.e2)
		if math.Abs(next-phi) < 1e-14 {
			phi = next
			break
		}
		phi = next
	}
	return rad2deg(phi), rad2deg(lam)
}

// Transverse Mercator, USGS series form.

func (p Projection) meridionalArc(phi float64) float64 {
	e2 := p.e2
	e4 := e2 * e2
	e6 := e4 * e2
	return p.a * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

func (p Projection) tmForward(phi, lam float64) (x, y float64) {
	sinφ := math.Sin(phi)
	cosφ := math.Cos(phi)
	nu := p.a / math.Sqrt(1-p.e2*sinφ*sinφ)
	t := math.Tan(phi) * math.Tan(phi)
	c := p.tmEp2 * cosφ * cosφ
	aa := (lam - p.lon0) * cosφ
	m := p.meridionalArc(phi)

	// The seventh/eighth order terms matter: CS92 spans ~300 km either side
	// of the central meridian, and truncating at the fifth order costs
	// millimeters at the grid edges.
	x = p.fe + p.k0*nu*(aa+
		(1-t+c)*math.Pow(aa, 3)/6+
		(5-18*t+t*t+72*c-58*p.tmEp2)*math.Pow(aa, 5)/120+
		(61-479*t+179*t*t-t*t*t)*math.Pow(aa, 7)/5040)
	y = p.fn + p.k0*(m-p.tmM0+nu*math.Tan(phi)*
		(aa*aa/2+
			(5-t+9*c+4*c*c)*math.Pow(aa, 4)/24+
			(61-58*t+t*t+600*c-330*p.tmEp2)*math.Pow(aa, 6)/720+
			(1385-3111*t+543*t*t-t*t*t)*math.Pow(aa, 8)/40320))
	return x, y
}

func (p Projection) tmInverse(x, y float64) (lat, lng float64) {
	e1 := p.tmE1
	m := p.tmM0 + (y-p.fn)/p.k0
	mu := m / (p.a * (1 - p.e2/4 - 3*p.e2*p.e2/64 - 5*p.e2*p.e2*p.e2/256))

	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin1 := math.Sin(phi1)
	cos1 := math.Cos(phi1)
	c1 := p.tmEp2 * cos1 * cos1
	t1 := math.Tan(phi1) * math.Tan(phi1)
	nu1 := p.a / math.Sqrt(1-p.e2*sin1*sin1)
	rho1 := p.a * (1 - p.e2) / math.Pow(1-p.e2*sin1*sin1, 1.5)
	d := (x - p.fe) / (nu1 * p.k0)

	phi := phi1 - (nu1 * math.Tan(phi1) / rho1) *
		(d*d/2-
			(5+3*t1+10*c1-4*c1*c1-9*p.tmEp2)*math.Pow(d, 4)/24+
			(61+90*t1+298*c1+45*t1*t1-252*p.tmEp2-3*c1*c1)*math.Pow(d, 6)/720-
			(1385+3633*t1+4095*t1*t1+1575*t1*t1*t1)*math.Pow(d, 8)/40320)
	lam := p.lon0 + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*p.tmEp2+24*t1*t1)*math.Pow(d, 5)/120-
		(61+662*t1+1320*t1*t1+720*t1*t1*t1)*math.Pow(d, 7)/5040)/cos1
	return rad2deg(phi), rad2deg(lam)
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func validGeographic(lat, lng float64) bool {
	return isFinite(lat) && isFinite(lng) &&
		lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
