// internal/events/commands.go
package events

import (
	"github.com/gagliardetto/solana-go"

	"github.com/lasersell/lasersell/internal/config"
)

// Command is an instruction from the dashboard or runner to the engine.
type Command interface {
	isCommand()
}

type Quit struct{}

// TogglePauseNewSessions stops or resumes scheduling of new sells. Running
// sells are not affected.
type TogglePauseNewSessions struct{}

// ApplySettings replaces both runtime configs and pushes the strategy to the server.
type ApplySettings struct {
	Strategy config.StrategyConfig
	Sell     config.SellConfig
}

// RequestExitSignal triggers a manual sell of the whole position in Mint.
type RequestExitSignal struct {
	Mint solana.PublicKey
}

func (Quit) isCommand()                   {}
func (TogglePauseNewSessions) isCommand() {}
func (ApplySettings) isCommand()          {}
func (RequestExitSignal) isCommand()      {}
