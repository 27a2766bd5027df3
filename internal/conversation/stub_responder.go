package conversation

import (
	"context"
	"fmt"
	"strings"
)

// StubResponder answers without a model. It is used when no LLM is
// configured so the rest of the pipeline stays exercisable.
type StubResponder struct{}

func (StubResponder) Respond(ctx context.Context, req ResponderRequest) (string, error) {
	name := "nuestro equipo"
	if req.Tenant != nil && strings.TrimSpace(req.Tenant.BusinessName) != "" {
		name = req.Tenant.BusinessName
	}
	return fmt.Sprintf("Gracias por escribir a %s. En este momento el asistente no está disponible; por favor intente más tarde.", name), nil
}
