package core

// Mutation is a single put or remove inside a Batch.
type Mutation struct {
	Key    string
	Value  any // int64 or bool; ignored when Remove is set
	Remove bool
}

// Batch collects mutations that a store commits together, in order.
type Batch struct {
	muts []Mutation
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

// PutInt64 queues an integer write.
func (b *Batch) PutInt64(key string, v int64) *Batch {
	b.muts = append(b.muts, Mutation{Key: key, Value: v})
	return b
}

// PutBool queues a boolean write.
func (b *Batch) PutBool(key string, v bool) *Batch {
	b.muts = append(b.muts, Mutation{Key: key, Value: v})
	return b
}

// Remove queues a key removal.
func (b *Batch) Remove(key string) *Batch {
	b.muts = append(b.muts, Mutation{Key: key, Remove: true})
	return b
}

// Mutations returns a copy of the queued mutations.
func (b *Batch) Mutations() []Mutation {
	if b == nil {
		return nil
	}
	out := make([]Mutation, len(b.muts))
	copy(out, b.muts)
	return out
}

// Len reports the number of queued mutations.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.muts)
}
