package ledger

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/Mindburn-Labs/tearframe/pkg/store"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Seal implements Ledger. The receipt is base58(sha256(hash:issued_at:nonce)):
// one-way, and fresh on every call even within the same clock tick.
func (f *FileLedger) Seal(ctx context.Context, contentHash string) (string, error) {
	if _, err := f.Lookup(ctx, contentHash); err != nil {
		return "", fmt.Errorf("seal %s: %w", contentHash, err)
	}

	issued := f.clock().UTC()
	digest := sha256.Sum256([]byte(contentHash + ":" + issued.Format(TimestampLayout) + ":" + f.nonce()))
	receiptID := encodeBase58(digest[:])

	err := f.receipts.Store(ctx, store.Receipt{
		ReceiptID:   receiptID,
		ContentHash: contentHash,
		IssuedAt:    issued,
	})
	if err != nil {
		return "", fmt.Errorf("record receipt: %w", err)
	}

	f.logger.InfoContext(ctx, "ledger seal", "hash", contentHash, "receipt", receiptID)
	return receiptID, nil
}

// Resolve implements Ledger. The bound hash must still be present in the log.
func (f *FileLedger) Resolve(ctx context.Context, receiptID string) (string, error) {
	r, err := f.receipts.Resolve(ctx, receiptID)
	if err != nil {
		if errors.Is(err, store.ErrReceiptNotFound) {
			return "", fmt.Errorf("receipt %s: %w", receiptID, ErrNotFound)
		}
		return "", err
	}
	if _, err := f.Lookup(ctx, r.ContentHash); err != nil {
		return "", fmt.Errorf("receipt %s: %w", receiptID, err)
	}
	return r.ContentHash, nil
}

func encodeBase58(b []byte) string {
	n := new(big.Int).SetBytes(b)
	radix := big.NewInt(58)
	mod := new(big.Int)

	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, radix, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}
	for _, c := range b {
		if c != 0 {
			break
		}
		out = append(out, base58Alphabet[0])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}
