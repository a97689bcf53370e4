package pipeline

import (
	"bytes"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smile/fault"
	"smile/manifest"
	"smile/report"
	"smile/safety"
	"smile/search"
)

// stage12Image is a 49 byte stage 1+2 image with unsafe words at 0x127,
// 0x12b and 0x12e (one byte before the "k1" trailer).
const stage12Image = "6e6163656d6f7273757677787a6264666768696a6b6c70717479303132333435363738396e61cd216d6f90737576c36b31"

const stage1Include = "// Generated by \"smile stage1\"\n" +
	"// Stage-1\n" +
	"NUMPROMOTE = 1 \t// Number of bytes promoted to word\n" +
	"OFSHASH = '0' \t// %si offset containing stage1 number generator hash, hash=0x6f33\n" +
	"SEEDDI = 0x63 \t// multiplier for step-1A. %di=0x00b9\n" +
	"SEEDSI = 0x7361 \t// multiplier for step-1B. %si=0x84ad, hash=0xa460\n" +
	"SEEDFIX12 = 0x6f \t// multiplier for step-1C. %si=0x45a0\n" +
	"SEEDFIX3 = 0x6e \t// multiplier for step-1D. %si=0xa140\n" +
	"OFSFIX1 = 'n' \t// patch offset for step-2B\n" +
	"FIX1H = 0x45 \t// patch for HI-byte\n" +
	"FIX1L = 0xa0 \t// patch for LO-byte\n" +
	"OFSFIX2 = 'r' \t// patch offset for step-2C\n" +
	"FIX2H = 0x45 \t// patch for HI-byte\n" +
	"FIX2L = 0xa0 \t// patch for LO-byte\n" +
	"OFSFIX3 = 'u' \t// patch offset for step-2D\n" +
	"FIX3H = 0xa1 \t// patch for HI-byte\n" +
	"FIX3L = 0x40 \t// patch for LO-byte\n" +
	"// Stage-2A\n" +
	"OFSHEAD = 'w' \t// %di offset to output HEAD containing stage2 number generator hash\n" +
	"HASHHEAD = 0x6f33\n" +
	"HASHHEADH = 'o' \t// decoder hash HI-byte\n" +
	"HASHHEADL = '3' \t// decoder hash LO-byte\n" +
	"#if !defined(SEEDHEAD)\n" +
	"SEEDHEAD = 0x6e6e \t// supplied by genStage2.js\n" +
	"#endif\n" +
	"// Stage-2B\n" +
	"OFSTEXT = 'y' \t// %di offset to input TEXT containing the next character\n" +
	"SEEDTEXT = 0x6e \t// ascii-safe user defined\n" +
	"// Stage-3\n" +
	"STAGE3EOS = 0x0100 \t// stage3 end-of-sequence token\n"

const stage12Include = "// STAGE-1 config\n" +
	"// SI=0x0548,0xa7f4,0x7b77,0x8a1d\n" +
	"OFSDI = 'e' \t// multiplier for initial %di\n" +
	"HEAD = 'r' \t// %di offset to encoded stage3 DATA\n" +
	"IMM1 = 0x7a68 \t// multiplier for step-1\n" +
	"IMM2 = 0x73 \t// multiplier for step-2\n" +
	"IMM3 = 0x64 \t// multiplier for step-3\n" +
	"IMM4 = 0x67 \t// multiplier for step-4\n" +
	"IMM5 = 0x6d \t// multiplier for step-5\n" +
	"\n" +
	"// Patch config\n" +
	"OFSMEM1 = 'e' \t// patch offset for step-4\n" +
	"FIX1H = '8' \t// patch for HI-byte\n" +
	"FIX1L = 's' \t// patch for LO-byte\n" +
	"OFSMEM2 = 'j' \t// patch offset for step-4\n" +
	"FIX2H = '0' \t// patch for HI-byte\n" +
	"FIX2L = '0' \t// patch for LO-byte\n" +
	"OFSMEM3 = 'o' \t// patch offset for step-5\n" +
	"FIX3H = 'o' \t// patch for HI-byte\n" +
	"FIX3L = 'h' \t// patch for LO-byte\n"

func image12(t *testing.T) []byte {
	t.Helper()
	data, err := hex.DecodeString(stage12Image)
	require.NoError(t, err)
	return data
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSearchStage1(t *testing.T) {
	s, err := SearchStage1(safety.Default(), DefaultStage1Params(), image12(t))
	require.NoError(t, err)

	assert.Equal(t, 1, s.NumPromote)
	assert.Equal(t, 261, s.Score)
	assert.Equal(t, 1546, s.Combos)
	assert.Equal(t, 0xb9, s.DI())
	assert.Equal(t, 0x127, s.Fixups[0].Addr)
	assert.Equal(t, uint16(0xc376), s.Fixups[2].Word)
	if diff := cmp.Diff(stage1Include, s.Include("smile stage1").String()); diff != "" {
		t.Errorf("include mismatch (-want +got):\n%s", diff)
	}
}

// Per-step work of the searches over stage12Image. Tier scores decide
// which candidate survives each slot, so a scoring change shows up here
// before it moves the selected chain.
var stage1Steps = []search.Stats{
	{Step: "step-1", Parents: 36 * 36, Updates: 26, Survivors: 12},
	{Step: "step-2", Parents: 1, Updates: 1332, Survivors: 1332},
	{Step: "step-3", Parents: 1332, Updates: 1137, Survivors: 360},
	{Step: "step-4", Parents: 360, Updates: 2710, Survivors: 1167},
	{Step: "cross", Parents: 12, Updates: 1546, Survivors: 1},
}

var stage12Steps = []search.Stats{
	{Step: "step-1", Parents: 1, Updates: 1332, Survivors: 1332},
	{Step: "step-2", Parents: 1332, Updates: 32, Survivors: 11},
	{Step: "step-3", Parents: 11, Updates: 13765, Survivors: 12628},
	{Step: "step-4", Parents: 12628, Updates: 26036, Survivors: 11291},
	{Step: "step-5", Parents: 11291, Updates: 23892, Survivors: 10926},
}

func TestStage1StepCounts(t *testing.T) {
	s, err := SearchStage1(safety.Default(), DefaultStage1Params(), image12(t))
	require.NoError(t, err)
	if diff := cmp.Diff(stage1Steps, s.Stats); diff != "" {
		t.Errorf("step stats mismatch (-want +got):\n%s", diff)
	}
}

func TestStage1Linkage(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "stage12.com", image12(t))
	cfg := writeFile(t, dir, "smile.cfg", []byte("STAGE3BASE=0x0130\nNAME=demo\n"))
	inc := filepath.Join(dir, "stage1.inc")

	r := NewRunner(zap.NewNop())
	require.NoError(t, r.Run("stage1", []string{inc, img}, Options{Config: cfg}))

	assert.Equal(t, stage1Include, readFile(t, inc))
	assert.Equal(t, "STAGE3BASE=0x0130\nNAME=demo\nOFSHASH=0x30\nOFSHEAD=0x77\nOFSTEXT=0x79\nHASHHEAD=0x6f33\nSTAGE3OFFSET=0x32\n",
		readFile(t, cfg))

	require.Len(t, r.Report.Stages, 1)
	st := r.Report.Stages[0]
	assert.True(t, st.Updated)
	assert.Equal(t, report.Value{Key: "HASHHEAD", Value: "0x6f33"}, st.Provides[3])
	assert.Equal(t, "cross", st.Steps[len(st.Steps)-1].Name)

	// a second run provides the same values and leaves the file alone
	require.NoError(t, r.Run("stage1", []string{inc, img}, Options{Config: cfg}))
	assert.False(t, r.Report.Stages[1].Updated)
}

func TestStage1Params(t *testing.T) {
	tab := safety.Default()
	img := image12(t)

	tests := []struct {
		name  string
		edit  func(p *Stage1Params)
		image []byte
		kind  fault.Kind
	}{
		{"stage3 base out of range", func(p *Stage1Params) { p.Stage3Base = 0x0140 }, img, fault.ParameterRange},
		{"unsafe seed head", func(p *Stage1Params) { p.SeedHead = 0x4141 }, img, fault.ParameterRange},
		{"unsafe seed text", func(p *Stage1Params) { p.SeedText = 0x20 }, img, fault.ParameterRange},
		{"eos too small", func(p *Stage1Params) { p.Stage3EOS = 0xff }, img, fault.ParameterRange},
		{"si unreachable", func(p *Stage1Params) { p.InitSI = 0x0110 }, img, fault.ParameterRange},
		{"too far away", nil, img[9:], fault.ParameterRange},
		{"too close by", nil, append(bytes.Repeat([]byte("n"), 11), img...), fault.ParameterRange},
		{"fixup count", nil, bytes.Repeat([]byte("n"), 49), fault.StructuralMismatch},
		{"no chain with negative promotion", nil, append([]byte("nn"), img...), fault.SearchExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultStage1Params()
			if tt.edit != nil {
				tt.edit(&p)
			}
			_, err := SearchStage1(tab, p, tt.image)
			require.Error(t, err)
			assert.Equal(t, tt.kind, fault.KindOf(err), "%v", err)
		})
	}
}

func TestSearchStage12(t *testing.T) {
	if testing.Short() {
		t.Skip("full five step search")
	}
	s, err := SearchStage12(safety.Default(), DefaultStage12Params())
	require.NoError(t, err)
	assert.Equal(t, 19, s.Score)
	assert.Equal(t, 1, s.Words)
	assert.Equal(t, 0xc3, s.DI)
	assert.True(t, s.Chain[0].Word)
	require.Len(t, s.Stats, len(stage12Steps)+1)
	if diff := cmp.Diff(stage12Steps, s.Stats[:len(stage12Steps)]); diff != "" {
		t.Errorf("step stats mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "select", s.Stats[len(stage12Steps)].Step)
	if diff := cmp.Diff(stage12Include, s.Include().String()); diff != "" {
		t.Errorf("include mismatch (-want +got):\n%s", diff)
	}

	var out bytes.Buffer
	r := NewRunner(nil)
	r.Out = &out
	require.NoError(t, r.Run("stage12", nil, Options{}))
	assert.Equal(t, stage12Include, out.String())
}

func TestCodecStages(t *testing.T) {
	dir := t.TempDir()
	com := writeFile(t, dir, "stage3.com", []byte{0x90})
	tmpl := writeFile(t, dir, "template.txt", nil)
	cfg := writeFile(t, dir, "smile.cfg", nil)
	r := NewRunner(zap.NewNop())
	o := Options{Config: cfg}

	asc2 := filepath.Join(dir, "stage3.asc")
	require.NoError(t, r.Stage2(o, asc2, com, tmpl))
	assert.Equal(t, "xvrvu", readFile(t, asc2))

	asc3 := filepath.Join(dir, "stage2.asc")
	require.NoError(t, r.Stage3(o, asc3, com))
	assert.Equal(t, "swea", readFile(t, asc3))

	asc4 := filepath.Join(dir, "payload.asc")
	require.NoError(t, r.Stage4(o, asc4, com, tmpl))
	assert.Equal(t, "cvszr", readFile(t, asc4))

	assert.Equal(t, "SEEDHEAD=0x6f6d\nSTAGE4BASE=0x0131\nSTAGE4OFFSET=0x05\nSEEDSTAGE3=0x656e\nSTAGE3EOS=0x0100\nSTAGE5OFFSET=0x0a\n",
		readFile(t, cfg))

	stages := r.Report.Stages
	require.Len(t, stages, 3)
	assert.Equal(t, 29, len(stages[0].Seeds))
	assert.Equal(t, 5, stages[0].Length)
}

func TestStage2Overrides(t *testing.T) {
	dir := t.TempDir()
	com := writeFile(t, dir, "stage3.com", []byte{0x90})
	tmpl := writeFile(t, dir, "template.txt", []byte("*.*\r\n.*.*"))
	asc := filepath.Join(dir, "stage3.asc")

	r := NewRunner(nil)
	// without a linkage file the explicit offset still applies
	require.NoError(t, r.Stage2(Options{Set: Overrides{"STAGE3OFFSET": 3}}, asc, com, tmpl))
	assert.Equal(t, "\r\na5z8e", readFile(t, asc))
	assert.Equal(t, report.Value{Key: "STAGE4OFFSET", Value: "0x0a"}, r.Report.Stages[0].Provides[2])
	assert.False(t, r.Report.Stages[0].Updated)
}

func TestStage2Exhausted(t *testing.T) {
	dir := t.TempDir()
	com := writeFile(t, dir, "stage3.com", []byte{0xb4, 0x09, 0xcd, 0x21})
	tmpl := writeFile(t, dir, "template.txt", nil)

	err := NewRunner(nil).Stage2(Options{}, filepath.Join(dir, "out.asc"), com, tmpl)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.SearchExhausted))
	assert.Contains(t, fault.Details(err), "add HASHHEAD 0x316b to the excluded stage1 hashes")
}

func TestTemplateStage(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 0xff, A: 0xff})
	img.Set(1, 1, color.NRGBA{R: 0x80, A: 0xff})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := writeFile(t, dir, "logo.png", buf.Bytes())

	out := filepath.Join(dir, "template.txt")
	r := NewRunner(nil)
	require.NoError(t, r.Run("template", []string{path, out}, Options{}))
	assert.Equal(t, "*.\r\n.*\r\n\n", readFile(t, out))

	var stdout bytes.Buffer
	r.Out = &stdout
	require.NoError(t, r.Run("template", []string{path}, Options{}))
	assert.Equal(t, "*.\r\n.*\r\n\n", stdout.String())
}

func TestRunArguments(t *testing.T) {
	r := NewRunner(nil)
	err := r.Run("stage9", nil, Options{})
	assert.True(t, fault.Is(err, fault.ParameterRange))

	err = r.Run("stage1", []string{"only.inc"}, Options{})
	assert.True(t, fault.Is(err, fault.ParameterRange))

	err = r.Run("stage3", []string{"a.asc", filepath.Join(t.TempDir(), "missing.com")}, Options{})
	assert.True(t, fault.Is(err, fault.IO))

	err = r.Run("stage3", []string{"a.asc", "b.com"}, Options{Config: filepath.Join(t.TempDir(), "missing.cfg")})
	assert.True(t, fault.Is(err, fault.IO))
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stage3.com", []byte{0x90})
	writeFile(t, dir, "payload.com", []byte{0x90})
	writeFile(t, dir, "template.txt", nil)
	writeFile(t, dir, manifest.FileName, []byte(`
[project]
name = "demo"
report = "out/report.yaml"

[[stage]]
name = "stage2"
args = ["stage3.asc", "stage3.com", "template.txt"]
set = { HASHHEAD = 0x316b }

[[stage]]
name = "stage4"
args = ["payload.asc", "payload.com", "template.txt"]
`))

	sub := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(sub, 0755))
	r := NewRunner(nil)
	require.NoError(t, r.BuildDir(sub))

	assert.Equal(t, "xvrvu", readFile(t, filepath.Join(dir, "stage3.asc")))
	assert.Equal(t, "cvszr", readFile(t, filepath.Join(dir, "payload.asc")))
	assert.Equal(t, "SEEDHEAD=0x6f6d\nSTAGE4BASE=0x0131\nSTAGE4OFFSET=0x05\nSTAGE3EOS=0x0100\nSTAGE5OFFSET=0x0a\n",
		readFile(t, filepath.Join(dir, "smile.cfg")))

	rep, err := report.Load(filepath.Join(dir, "out", "report.yaml"))
	require.NoError(t, err)
	require.Len(t, rep.Stages, 2)
	assert.Equal(t, "stage2", rep.Stages[0].Name)
	assert.Equal(t, "stage4", rep.Stages[1].Name)
	assert.True(t, rep.Stages[1].Updated)
}
