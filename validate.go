package fitting

import "fmt"

// ValidateSpec checks one fitting spec before pipeline construction.
// head must be true for the first stage, whose partfun cannot be Follow
// because no sender partition exists there.
//
// The checks are: the module ID resolves in the registry, the partfun is
// well-formed, and the module's ValidateArg (if implemented) accepts the
// spec argument. A panic inside ValidateArg is reported as a validation
// failure, not propagated.
func ValidateSpec(reg *Registry, spec Spec, head bool) error {
	if spec.Name == "" {
		return &BadSpecError{Reason: "empty stage name"}
	}
	if reg == nil {
		return &BadSpecError{Name: spec.Name, Reason: "no module registry"}
	}

	factory, ok := reg.Lookup(spec.ModuleID)
	if !ok {
		return &BadSpecError{Name: spec.Name, Reason: fmt.Sprintf("unknown module %q", spec.ModuleID)}
	}

	switch spec.Partfun.Kind {
	case PartfunFollow:
		if head {
			return &BadSpecError{Name: spec.Name, Reason: "follow partfun on first stage"}
		}
	case PartfunFunc:
		if spec.Partfun.Func == nil {
			return &BadSpecError{Name: spec.Name, Reason: "nil partition function"}
		}
	case PartfunSink:
		return &BadSpecError{Name: spec.Name, Reason: "sink partfun on a stage"}
	default:
		return &BadSpecError{Name: spec.Name, Reason: fmt.Sprintf("unknown partfun kind %d", spec.Partfun.Kind)}
	}

	if v, ok := factory().(ArgValidator); ok {
		if err := validateArg(v, spec.Arg); err != nil {
			return &BadSpecError{Name: spec.Name, Reason: fmt.Sprintf("invalid arg: %v", err)}
		}
	}

	return nil
}

// validateArg invokes ValidateArg, converting a panic into an error.
func validateArg(v ArgValidator, arg any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return v.ValidateArg(arg)
}
