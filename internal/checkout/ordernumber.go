package checkout

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	defaultOrderPrefix   = "VP"
	orderSuffixAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	orderSuffixLength    = 4
	maxOrderNumberTrials = 5
)

// OrderNumberGenerator produces PREFIX-YYYYMMDD-XXXX order numbers.
type OrderNumberGenerator struct {
	prefix string
	now    func() time.Time
	suffix func() (string, error)
}

func NewOrderNumberGenerator(prefix string) *OrderNumberGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = defaultOrderPrefix
	}
	return &OrderNumberGenerator{
		prefix: prefix,
		now:    time.Now,
		suffix: randomSuffix,
	}
}

// Next returns a candidate number. Uniqueness is not checked here.
func (g *OrderNumberGenerator) Next() (string, error) {
	suffix, err := g.suffix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", g.prefix, g.now().UTC().Format("20060102"), suffix), nil
}

// Claim draws candidates and hands each free one to insert. A candidate that
// exists already, or that insert reports as taken, costs one trial; the
// budget is shared by both.
func (g *OrderNumberGenerator) Claim(
	ctx context.Context,
	exists func(ctx context.Context, number string) (bool, error),
	insert func(ctx context.Context, number string) (taken bool, err error),
) (string, error) {
	for attempt := 0; attempt < maxOrderNumberTrials; attempt++ {
		number, err := g.Next()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		taken, err := exists(ctx, number)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check order number")
		}
		if taken {
			continue
		}
		taken, err = insert(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique order number")
}

func randomSuffix() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(orderSuffixAlphabet)))
	for i := 0; i < orderSuffixLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(orderSuffixAlphabet[n.Int64()])
	}
	return b.String(), nil
}
