package blockchain

import "time"

// ProposalStatus tracks a governance proposal through its lifecycle.
type ProposalStatus string

const (
	ProposalDraft    ProposalStatus = "DRAFT"
	ProposalActive   ProposalStatus = "ACTIVE"
	ProposalPassed   ProposalStatus = "PASSED"
	ProposalRejected ProposalStatus = "REJECTED"
	ProposalExecuted ProposalStatus = "EXECUTED"
	ProposalExpired  ProposalStatus = "EXPIRED"
)

// ProposalVote is one validator's recorded vote on a proposal.
type ProposalVote struct {
	Choice      string `json:"choice"`
	VotingPower uint64 `json:"votingPower"`
}

// GovernanceProposal is an on-chain proposal open for voting. The proposal
// id is the id of the transaction that submitted it.
type GovernanceProposal struct {
	ID           string                  `json:"id"`
	Title        string                  `json:"title"`
	Description  string                  `json:"description"`
	Proposer     string                  `json:"proposer"`
	ProposalType string                  `json:"proposalType,omitempty"`
	VotingStart  time.Time               `json:"votingStart"`
	VotingEnd    time.Time               `json:"votingEnd"`
	Votes        map[string]ProposalVote `json:"votes"`
	Status       ProposalStatus          `json:"status"`
}

// Tally sums voting power by choice.
func (p *GovernanceProposal) Tally() map[string]uint64 {
	tally := make(map[string]uint64)
	for _, vote := range p.Votes {
		tally[vote.Choice] += vote.VotingPower
	}
	return tally
}

// VotingOpen reports whether the proposal accepts votes at the given time.
func (p *GovernanceProposal) VotingOpen(at time.Time) bool {
	return p.Status == ProposalActive && !at.Before(p.VotingStart) && at.Before(p.VotingEnd)
}
