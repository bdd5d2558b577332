package providers

import (
	"github.com/smallbiznis/taskboard/internal/providers/email"
	"github.com/smallbiznis/taskboard/internal/providers/pdf"
	"github.com/smallbiznis/taskboard/internal/providers/sms"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	sms.Module,
	pdf.Module,
)
