package twofa

import "strings"

// Step es un paso de un alta en dos tiempos pedida por el cliente.
type Step string

const (
	StepInit   Step = "init"
	StepSend   Step = "send"
	StepVerify Step = "verify"
)

// Flow es un alta con pasos.
type Flow string

const (
	FlowTOTPSetup  Flow = "totp-setup"
	FlowEmailSetup Flow = "email-setup"
)

// flowSteps define los pasos válidos de cada flujo, en orden.
// totp-setup:  init -> verify (el secreto pendiente vive en twofa:totp-setup)
// email-setup: send -> verify (el código pendiente tiene purpose email-setup)
var flowSteps = map[Flow][]Step{
	FlowTOTPSetup:  {StepInit, StepVerify},
	FlowEmailSetup: {StepSend, StepVerify},
}

// ParseStep valida raw contra los pasos de f.
func ParseStep(f Flow, raw string) (Step, error) {
	s := Step(strings.TrimSpace(raw))
	for _, valid := range flowSteps[f] {
		if s == valid {
			return s, nil
		}
	}
	return "", ErrInvalidStep
}
