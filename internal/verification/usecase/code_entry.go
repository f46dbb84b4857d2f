package usecase

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

// CodeEntry merges digits typed or pasted into fixed slots into one candidate.
// A complete candidate is handed out once by Take; any later change re-arms it.
type CodeEntry struct {
	slots   []byte
	emitted bool
}

// NewCodeEntry returns an empty entry with n slots.
func NewCodeEntry(n int) *CodeEntry {
	return &CodeEntry{slots: make([]byte, n)}
}

func (c *CodeEntry) Len() int {
	return len(c.slots)
}

func (c *CodeEntry) checkSlot(slot int) error {
	if slot < 0 || slot >= len(c.slots) {
		return entity.NewError(entity.KindValidation, fmt.Sprintf("slot must be between 0 and %d", len(c.slots)-1))
	}
	return nil
}

// Set writes one digit into slot, or clears it when input is empty. It returns
// the slot that should receive focus next.
func (c *CodeEntry) Set(slot int, input string) (int, error) {
	if err := c.checkSlot(slot); err != nil {
		return slot, err
	}

	if input == "" {
		c.slots[slot] = 0
		c.emitted = false
		return slot, nil
	}

	if len(input) != 1 || !isDigit(rune(input[0])) {
		return slot, entity.NewError(entity.KindValidation, "each slot accepts a single digit")
	}

	c.slots[slot] = input[0]
	c.emitted = false

	return min(slot+1, len(c.slots)-1), nil
}

// Paste fills slots left to right from slot with the digits found in text.
// Digits beyond the last slot are dropped.
func (c *CodeEntry) Paste(slot int, text string) (int, error) {
	if err := c.checkSlot(slot); err != nil {
		return slot, err
	}

	digits := lo.Filter([]rune(text), func(r rune, _ int) bool { return isDigit(r) })
	if len(digits) == 0 {
		return slot, nil
	}

	room := len(c.slots) - slot
	if len(digits) > room {
		digits = digits[:room]
	}

	for i, d := range digits {
		c.slots[slot+i] = byte(d)
	}
	c.emitted = false

	return min(slot+len(digits), len(c.slots)-1), nil
}

// Backspace clears slot, or moves focus to the previous slot when it is already empty.
func (c *CodeEntry) Backspace(slot int) (int, error) {
	if err := c.checkSlot(slot); err != nil {
		return slot, err
	}

	if c.slots[slot] == 0 {
		return max(slot-1, 0), nil
	}

	c.slots[slot] = 0
	c.emitted = false

	return slot, nil
}

// Clear empties every slot.
func (c *CodeEntry) Clear() {
	clear(c.slots)
	c.emitted = false
}

// Complete reports whether every slot holds a digit.
func (c *CodeEntry) Complete() bool {
	return !lo.Contains(c.slots, 0)
}

// Take returns the joined candidate the first time the entry is complete.
func (c *CodeEntry) Take() (string, bool) {
	if c.emitted || !c.Complete() {
		return "", false
	}

	c.emitted = true
	return string(c.slots), true
}

// Rearm lets Take return the current candidate again.
func (c *CodeEntry) Rearm() {
	c.emitted = false
}

// Digits returns the slot contents, with "" for empty slots.
func (c *CodeEntry) Digits() []string {
	return lo.Map(c.slots, func(b byte, _ int) string {
		if b == 0 {
			return ""
		}
		return string(b)
	})
}

// Value returns the filled digits joined, skipping empty slots.
func (c *CodeEntry) Value() string {
	return strings.Join(c.Digits(), "")
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
