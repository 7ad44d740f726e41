package noteindex

// trialPartitionKey is the reserved owner value for anonymous (trial) notes.
// The sentinel never leaves this package; callers use the Owner type.
const trialPartitionKey = "trial-user"

// Owner identifies a partition of the shared note index: either an
// authenticated user or the shared trial partition.
type Owner struct {
	id    string
	trial bool
}

// OwnerID returns the partition of the authenticated user with the given ID.
func OwnerID(id string) Owner {
	return Owner{id: id}
}

// Trial returns the shared anonymous partition.
func Trial() Owner {
	return Owner{trial: true}
}

// IsTrial reports whether the owner is the shared trial partition.
func (o Owner) IsTrial() bool {
	return o.trial
}

// filterValue translates the owner into the payload value stored under the
// owner_id metadata key, the sole multi-tenancy boundary inside the index.
func (o Owner) filterValue() string {
	if o.trial {
		return trialPartitionKey
	}
	return o.id
}
