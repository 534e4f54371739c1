package storefront

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// AddToCart merges quantity into the caller's line for the product, creating
// the line with a name and price snapshot when there is none. The pair is
// locked in-process and every write is conditional, so a lost race against
// another process is resolved by re-reading and re-applying.
func (s *service) AddToCart(ctx context.Context, id Identity, productID uuid.UUID, quantity int64) (*CartLine, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, invalid("quantity", "must be at least 1")
	}

	product, err := s.repository.GetProduct(ctx, productID)
	if err != nil {
		return nil, &CartError{Op: "add", Err: fmt.Errorf("product %s: %w", productID, Classify(err))}
	}

	unlock := s.locks.lock(lineKey{user: id.Subject, product: productID})
	defer unlock()

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		line, err := s.repository.FindCartLine(ctx, id.Subject, productID)
		if errors.Is(err, ErrNotFound) {
			now := s.now()
			line = &CartLine{
				ID:                  uuid.New(),
				UserIdentity:        id.Subject,
				ProductID:           product.ID,
				ProductNameSnapshot: product.Name,
				UnitPriceSnapshot:   product.PriceMinor,
				Quantity:            quantity,
				AddedAt:             now,
				UpdatedAt:           now,
			}
			err = s.repository.CreateCartLine(ctx, line)
			switch {
			case err == nil:
				s.logger.InfoContext(ctx, "cart line created", "line_id", line.ID, "user", id.Subject, "product_id", productID, "quantity", quantity)
				s.emit(ctx, "cart_line_changed", func() error { return s.eventSink.CartLineChanged(ctx, line, false) })
				return line, nil
			case errors.Is(err, ErrDuplicate):
				s.logger.DebugContext(ctx, "cart line created concurrently, merging", "user", id.Subject, "product_id", productID, "attempt", attempt)
				continue
			default:
				return nil, &CartError{LineID: line.ID, Op: "add", Err: Classify(err)}
			}
		}
		if err != nil {
			return nil, &CartError{Op: "add", Err: Classify(err)}
		}

		merged := line.Quantity + quantity
		now := s.now()
		err = s.repository.UpdateCartLineQuantity(ctx, line.ID, line.Quantity, merged, now)
		switch {
		case err == nil:
			line.Quantity = merged
			line.UpdatedAt = now
			s.logger.InfoContext(ctx, "cart line merged", "line_id", line.ID, "user", id.Subject, "quantity", merged)
			s.emit(ctx, "cart_line_changed", func() error { return s.eventSink.CartLineChanged(ctx, line, false) })
			return line, nil
		case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
			s.logger.DebugContext(ctx, "cart line changed concurrently, retrying", "line_id", line.ID, "attempt", attempt)
			continue
		default:
			return nil, &CartError{LineID: line.ID, Op: "add", Err: Classify(err)}
		}
	}

	return nil, &CartError{Op: "add", Err: fmt.Errorf("%w: gave up after %d attempts", ErrConflict, maxWriteAttempts)}
}

// ChangeQuantity applies delta to a line. A result of zero or less removes
// the line. A line that no longer exists is a no-op: nil line, removed
// false, no error. Removed is true only when this call deleted the line.
func (s *service) ChangeQuantity(ctx context.Context, id Identity, lineID uuid.UUID, delta int64) (*CartLine, bool, error) {
	line, removed, err := s.ChangeQuantityStrict(ctx, id, lineID, delta)
	if errors.Is(err, ErrNotFound) {
		s.logger.DebugContext(ctx, "cart line already gone", "line_id", lineID, "delta", delta)
		return nil, false, nil
	}
	return line, removed, err
}

// ChangeQuantityStrict is ChangeQuantity without the not-found recovery.
func (s *service) ChangeQuantityStrict(ctx context.Context, id Identity, lineID uuid.UUID, delta int64) (*CartLine, bool, error) {
	if err := requireIdentity(id); err != nil {
		return nil, false, err
	}

	line, err := s.repository.GetCartLine(ctx, lineID)
	if err != nil {
		return nil, false, &CartError{LineID: lineID, Op: "change_quantity", Err: Classify(err)}
	}
	if err := ownsLine(id, line); err != nil {
		return nil, false, err
	}
	if delta == 0 {
		return line, false, nil
	}

	unlock := s.locks.lock(lineKey{user: line.UserIdentity, product: line.ProductID})
	defer unlock()

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		current, err := s.repository.GetCartLine(ctx, lineID)
		if err != nil {
			return nil, false, &CartError{LineID: lineID, Op: "change_quantity", Err: Classify(err)}
		}

		next := current.Quantity + delta
		if next <= 0 {
			err = s.repository.DeleteCartLine(ctx, lineID, current.Quantity)
			if err == nil {
				s.logger.InfoContext(ctx, "cart line removed", "line_id", lineID, "user", id.Subject)
				s.emit(ctx, "cart_line_changed", func() error { return s.eventSink.CartLineChanged(ctx, current, true) })
				return nil, true, nil
			}
		} else {
			now := s.now()
			err = s.repository.UpdateCartLineQuantity(ctx, lineID, current.Quantity, next, now)
			if err == nil {
				current.Quantity = next
				current.UpdatedAt = now
				s.emit(ctx, "cart_line_changed", func() error { return s.eventSink.CartLineChanged(ctx, current, false) })
				return current, false, nil
			}
		}

		if !errors.Is(err, ErrConflict) {
			return nil, false, &CartError{LineID: lineID, Op: "change_quantity", Err: Classify(err)}
		}
		s.logger.DebugContext(ctx, "cart line changed concurrently, retrying", "line_id", lineID, "attempt", attempt)
	}

	return nil, false, &CartError{LineID: lineID, Op: "change_quantity", Err: fmt.Errorf("%w: gave up after %d attempts", ErrConflict, maxWriteAttempts)}
}

// RemoveLine deletes a line. Removing a line that does not exist succeeds.
func (s *service) RemoveLine(ctx context.Context, id Identity, lineID uuid.UUID) error {
	if err := requireIdentity(id); err != nil {
		return err
	}

	line, err := s.repository.GetCartLine(ctx, lineID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return &CartError{LineID: lineID, Op: "remove", Err: Classify(err)}
	}
	if err := ownsLine(id, line); err != nil {
		return err
	}

	unlock := s.locks.lock(lineKey{user: line.UserIdentity, product: line.ProductID})
	defer unlock()

	if err := s.repository.DeleteCartLine(ctx, lineID, 0); err != nil && !errors.Is(err, ErrNotFound) {
		return &CartError{LineID: lineID, Op: "remove", Err: Classify(err)}
	}
	s.emit(ctx, "cart_line_changed", func() error { return s.eventSink.CartLineChanged(ctx, line, true) })
	return nil
}

func (s *service) ListCart(ctx context.Context, id Identity) ([]*CartLine, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	lines, err := s.repository.ListCartLines(ctx, id.Subject)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", Classify(err))
	}
	return lines, nil
}

func (s *service) CartSummary(ctx context.Context, id Identity, selected []uuid.UUID) (*CartSummary, error) {
	lines, err := s.ListCart(ctx, id)
	if err != nil {
		return nil, err
	}

	set := make(map[uuid.UUID]bool, len(selected))
	for _, sid := range selected {
		set[sid] = true
	}
	count := 0
	for _, l := range lines {
		if set[l.ID] {
			count++
		}
	}

	return &CartSummary{
		Lines:         lines,
		LineCount:     len(lines),
		SelectedCount: count,
		TotalMinor:    ComputeTotal(lines, selected),
	}, nil
}

// ClearCart removes every line of the caller.
func (s *service) ClearCart(ctx context.Context, id Identity) (int, error) {
	if err := requireIdentity(id); err != nil {
		return 0, err
	}
	n, err := s.repository.DeleteCartLines(ctx, id.Subject)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", Classify(err))
	}
	s.logger.InfoContext(ctx, "cart cleared", "user", id.Subject, "lines", n)
	return n, nil
}

// SignOut keeps the cart unless the service was built with WithClearCartOnSignOut.
func (s *service) SignOut(ctx context.Context, id Identity) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	if !s.clearCartOnSignOut {
		return nil
	}
	_, err := s.ClearCart(ctx, id)
	return err
}
