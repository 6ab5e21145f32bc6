package vault

// MaxUnstakeRequests bounds the number of outstanding unstake requests per
// user.
const MaxUnstakeRequests = 5

// UnstakeRequest is a claim against fixed principal that vests linearly from
// CreatedAt over VestingPeriod seconds.
type UnstakeRequest struct {
	ID            string `json:"id"`
	TotalAmount   uint64 `json:"totalAmount"`
	ClaimedAmount uint64 `json:"claimedAmount"`
	CreatedAt     uint64 `json:"createdAt"`
	// VestingPeriod is the vault period in effect when the request was made.
	VestingPeriod uint64 `json:"vestingPeriod"`
}

// EndsAt is the timestamp at which the request is fully vested.
func (r UnstakeRequest) EndsAt() uint64 {
	return r.CreatedAt + r.VestingPeriod
}

// Outstanding is the principal not yet claimed.
func (r UnstakeRequest) Outstanding() uint64 {
	if r.ClaimedAmount >= r.TotalAmount {
		return 0
	}
	return r.TotalAmount - r.ClaimedAmount
}

// Vested returns the amount vested at now.
func (r UnstakeRequest) Vested(now uint64) uint64 {
	return VestedAmount(r.TotalAmount, r.CreatedAt, r.VestingPeriod, now)
}

// Claimable returns the vested amount not yet claimed.
func (r UnstakeRequest) Claimable(now uint64) uint64 {
	return ClaimableAmount(r.TotalAmount, r.ClaimedAmount, r.CreatedAt, r.VestingPeriod, now)
}

// RequestSlots is a fixed-capacity slot array. Slots [0, Count) are occupied
// and the rest are zeroed.
type RequestSlots struct {
	Slots [MaxUnstakeRequests]UnstakeRequest `json:"slots"`
	Count uint64                             `json:"count"`
}

func (r *RequestSlots) Len() int { return int(r.Count) }

func (r *RequestSlots) Full() bool { return r.Count >= MaxUnstakeRequests }

// Append stores req in the next free slot and returns its index.
func (r *RequestSlots) Append(req UnstakeRequest) (int, error) {
	if r.Full() {
		return 0, ErrRequestCapacityExceeded
	}
	idx := int(r.Count)
	r.Slots[idx] = req
	r.Count++
	return idx, nil
}

// At returns a pointer into the occupied slot at index.
func (r *RequestSlots) At(index int) (*UnstakeRequest, bool) {
	if index < 0 || index >= r.Len() {
		return nil, false
	}
	return &r.Slots[index], true
}

// IndexOf returns the slot holding id, or -1.
func (r *RequestSlots) IndexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := 0; i < r.Len(); i++ {
		if r.Slots[i].ID == id {
			return i
		}
	}
	return -1
}

// Remove swaps the last occupied slot into index and clears the tail. The
// relative order of the remaining requests may change.
func (r *RequestSlots) Remove(index int) bool {
	if index < 0 || index >= r.Len() {
		return false
	}
	last := r.Len() - 1
	if index != last {
		r.Slots[index] = r.Slots[last]
	}
	r.Slots[last] = UnstakeRequest{}
	r.Count--
	return true
}

// List copies the occupied slots in slot order.
func (r *RequestSlots) List() []UnstakeRequest {
	out := make([]UnstakeRequest, r.Len())
	copy(out, r.Slots[:r.Len()])
	return out
}

// Outstanding sums unclaimed principal over all requests.
func (r *RequestSlots) Outstanding() uint64 {
	var total uint64
	for i := 0; i < r.Len(); i++ {
		total += r.Slots[i].Outstanding()
	}
	return total
}
