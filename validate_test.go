package fitting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSpec_AcceptsWellFormedSpec(t *testing.T) {
	reg := testRegistry()

	err := ValidateSpec(reg, Spec{
		Name:     "double",
		ModuleID: "pass",
		Partfun:  PartitionBy(func(any) PartitionID { return 0 }),
	}, true)

	assert.NoError(t, err)
}

func TestValidateSpec_RejectsEmptyName(t *testing.T) {
	err := ValidateSpec(testRegistry(), Spec{ModuleID: "pass", Partfun: Follow()}, false)

	var bad *BadSpecError
	require.ErrorAs(t, err, &bad)
	assert.Contains(t, bad.Reason, "empty stage name")
}

func TestValidateSpec_RejectsNilRegistry(t *testing.T) {
	err := ValidateSpec(nil, Spec{Name: "double", ModuleID: "pass", Partfun: Follow()}, false)

	var bad *BadSpecError
	require.ErrorAs(t, err, &bad)
	assert.Contains(t, bad.Reason, "registry")
}

func TestValidateSpec_RejectsUnknownModule(t *testing.T) {
	err := ValidateSpec(testRegistry(), Spec{Name: "double", ModuleID: "missing", Partfun: Follow()}, false)

	var bad *BadSpecError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "double", bad.Name)
	assert.Contains(t, bad.Reason, "unknown module")
}

func TestValidateSpec_RejectsFollowOnHeadStage(t *testing.T) {
	spec := Spec{Name: "double", ModuleID: "pass", Partfun: Follow()}

	err := ValidateSpec(testRegistry(), spec, true)
	var bad *BadSpecError
	require.ErrorAs(t, err, &bad)
	assert.Contains(t, bad.Reason, "follow partfun on first stage")

	assert.NoError(t, ValidateSpec(testRegistry(), spec, false), "follow is fine downstream")
}

func TestValidateSpec_RejectsNilPartitionFunction(t *testing.T) {
	err := ValidateSpec(testRegistry(), Spec{
		Name:     "double",
		ModuleID: "pass",
		Partfun:  Partfun{Kind: PartfunFunc},
	}, false)

	var bad *BadSpecError
	require.ErrorAs(t, err, &bad)
	assert.Contains(t, bad.Reason, "nil partition function")
}

func TestValidateSpec_RejectsSinkPartfunOnStage(t *testing.T) {
	err := ValidateSpec(testRegistry(), Spec{
		Name:     "double",
		ModuleID: "pass",
		Partfun:  Partfun{Kind: PartfunSink},
	}, false)

	var bad *BadSpecError
	require.ErrorAs(t, err, &bad)
	assert.Contains(t, bad.Reason, "sink partfun")
}

func TestValidateSpec_RunsValidateArg(t *testing.T) {
	ok := Spec{Name: "double", ModuleID: "picky", Arg: "fine", Partfun: Follow()}
	assert.NoError(t, ValidateSpec(testRegistry(), ok, false))

	notOK := Spec{Name: "double", ModuleID: "picky", Arg: 42, Partfun: Follow()}
	err := ValidateSpec(testRegistry(), notOK, false)
	var bad *BadSpecError
	require.ErrorAs(t, err, &bad)
	assert.Contains(t, bad.Reason, "arg must be a string")
}

func TestValidateSpec_ReportsValidateArgPanic(t *testing.T) {
	err := ValidateSpec(testRegistry(), Spec{
		Name:     "double",
		ModuleID: "panicky",
		Partfun:  Follow(),
	}, false)

	var bad *BadSpecError
	require.ErrorAs(t, err, &bad)
	assert.Contains(t, bad.Reason, "panic")
	assert.Contains(t, bad.Reason, "boom")
}
