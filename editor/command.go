package editor

import (
	"errors"
	"fmt"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command names accepted by Apply.
const (
	CmdAddText     = "addText"
	CmdUpdateText  = "updateText"
	CmdUpdateStyle = "updateStyle"
	CmdMove        = "move"
	CmdResize      = "resize"
	CmdRemove      = "remove"
	CmdSelect      = "select"
	CmdBeginEdit   = "beginEdit"
	CmdConfirmEdit = "confirmEdit"
	CmdCancelEdit  = "cancelEdit"
	CmdUndo        = "undo"
	CmdRedo        = "redo"
	CmdReset       = "reset"
)

// Command is the wire form of a session command.
type Command struct {
	Type     string       `json:"type"`
	LayerID  string       `json:"layerId,omitempty"`
	Text     string       `json:"text,omitempty"`
	Position *Position    `json:"position,omitempty"`
	Old      *Box         `json:"old,omitempty"`
	Next     *Box         `json:"next,omitempty"`
	Style    *StyleUpdate `json:"style,omitempty"`
}

// Apply dispatches a command to the matching session method.
func (s *Session) Apply(cmd Command) (View, error) {
	switch cmd.Type {
	case CmdAddText:
		return s.AddTextLayer(cmd.Text)
	case CmdUpdateText:
		return s.UpdateLayerText(cmd.LayerID, cmd.Text)
	case CmdUpdateStyle:
		if cmd.Style == nil {
			return s.View(), fmt.Errorf("%w: style is required", ErrInvalidStyle)
		}
		return s.UpdateSelectedStyle(*cmd.Style)
	case CmdMove:
		if cmd.Position == nil {
			return s.View(), fmt.Errorf("move: position is required")
		}
		return s.MoveLayer(cmd.LayerID, *cmd.Position)
	case CmdResize:
		if cmd.Old == nil || cmd.Next == nil {
			return s.View(), fmt.Errorf("resize: old and next boxes are required")
		}
		return s.ResizeLayer(cmd.LayerID, *cmd.Old, *cmd.Next)
	case CmdRemove:
		return s.RemoveLayer(cmd.LayerID)
	case CmdSelect:
		return s.SelectLayer(cmd.LayerID)
	case CmdBeginEdit:
		return s.BeginTextEdit(cmd.LayerID)
	case CmdConfirmEdit:
		return s.ConfirmTextEdit(cmd.Text)
	case CmdCancelEdit:
		return s.CancelTextEdit()
	case CmdUndo:
		return s.Undo()
	case CmdRedo:
		return s.Redo()
	case CmdReset:
		return s.Reset(), nil
	}
	return s.View(), fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
}
