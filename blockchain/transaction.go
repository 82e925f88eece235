package blockchain

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gridtokenx_go/security"
)

// TxKind identifies the ledger operation a transaction performs. The set is
// closed; every switch over it handles all members.
type TxKind string

const (
	TxTransfer              TxKind = "TRANSFER"
	TxEnergyTrade           TxKind = "ENERGY_TRADE"
	TxGovernance            TxKind = "GOVERNANCE"
	TxGenesisMint           TxKind = "GENESIS_MINT"
	TxAuthorityRegistration TxKind = "AUTHORITY_REGISTRATION"
	TxContractDeploy        TxKind = "CONTRACT_DEPLOY"
	TxContractExecute       TxKind = "CONTRACT_EXECUTE"
	TxEnergyMeasurement     TxKind = "ENERGY_MEASUREMENT"
	TxDeviceRegistration    TxKind = "DEVICE_REGISTRATION"
)

// EnergySource identifies where traded energy comes from.
type EnergySource string

const (
	SourceSolar      EnergySource = "SOLAR"
	SourceWind       EnergySource = "WIND"
	SourceHydro      EnergySource = "HYDRO"
	SourceBiomass    EnergySource = "BIOMASS"
	SourceGeothermal EnergySource = "GEOTHERMAL"
	SourceGrid       EnergySource = "GRID"
	SourceBattery    EnergySource = "BATTERY"
)

// IsRenewable reports whether the source counts toward the renewable share.
func (s EnergySource) IsRenewable() bool {
	switch s {
	case SourceSolar, SourceWind, SourceHydro, SourceBiomass, SourceGeothermal:
		return true
	}
	return false
}

// CarbonCreditRate returns the credits earned per kWh sold from this source.
func (s EnergySource) CarbonCreditRate() float64 {
	switch s {
	case SourceSolar:
		return 0.5
	case SourceWind:
		return 0.6
	case SourceHydro:
		return 0.4
	case SourceBiomass:
		return 0.3
	case SourceGeothermal:
		return 0.7
	default:
		return 0
	}
}

// OrderType distinguishes the market side of an energy trade.
type OrderType string

const (
	OrderBuy   OrderType = "BUY"
	OrderSell  OrderType = "SELL"
	OrderMatch OrderType = "MATCH"
)

// TransferData is the payload of a token transfer.
type TransferData struct {
	Amount  uint64 `json:"amount"`
	Message string `json:"message,omitempty"`
}

// EnergyTradeData is the payload of an energy settlement.
type EnergyTradeData struct {
	EnergyAmountKWh float64      `json:"energyAmountKwh"`
	PricePerKWh     uint64       `json:"pricePerKwh"`
	TotalValue      uint64       `json:"totalValue"`
	Source          EnergySource `json:"source"`
	DeliveryStart   time.Time    `json:"deliveryStart"`
	DeliveryEnd     time.Time    `json:"deliveryEnd"`
	GridLocation    string       `json:"gridLocation,omitempty"`
	CarbonCredits   float64      `json:"carbonCredits"`
	OrderType       OrderType    `json:"orderType"`
	BuyOrderID      string       `json:"buyOrderId,omitempty"`
	SellOrderID     string       `json:"sellOrderId,omitempty"`
}

// GovernanceAction identifies the governance operation carried by a
// governance transaction.
type GovernanceAction string

const (
	GovProposalSubmission GovernanceAction = "PROPOSAL_SUBMISSION"
	GovVote               GovernanceAction = "VOTE"
	GovProposalExecution  GovernanceAction = "PROPOSAL_EXECUTION"
	GovVotingDelegation   GovernanceAction = "VOTING_DELEGATION"
)

// GovernanceData is the payload of a governance transaction. Fields beyond
// Action are populated per action.
type GovernanceData struct {
	Action             GovernanceAction `json:"action"`
	Title              string           `json:"title,omitempty"`
	Description        string           `json:"description,omitempty"`
	ProposalType       string           `json:"proposalType,omitempty"`
	VotingPeriodDays   uint32           `json:"votingPeriodDays,omitempty"`
	ExecutionDelayDays uint32           `json:"executionDelayDays,omitempty"`
	ProposalID         string           `json:"proposalId,omitempty"`
	Vote               string           `json:"vote,omitempty"`
	VotingPower        uint64           `json:"votingPower,omitempty"`
	Reason             string           `json:"reason,omitempty"`
	DelegateTo         string           `json:"delegateTo,omitempty"`
	DurationBlocks     uint64           `json:"durationBlocks,omitempty"`
}

// GenesisMintData is the payload of an initial token issuance.
type GenesisMintData struct {
	Amount      uint64 `json:"amount"`
	Description string `json:"description,omitempty"`
}

// AuthorityRegistrationData registers an energy authority account.
type AuthorityRegistrationData struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	AuthorityType string `json:"authorityType,omitempty"`
}

// ContractDeployData is the payload of a contract deployment.
type ContractDeployData struct {
	Bytecode        []byte   `json:"bytecode"`
	ConstructorArgs []string `json:"constructorArgs,omitempty"`
}

// ContractExecuteData is the payload of a contract call.
type ContractExecuteData struct {
	ContractAddress string   `json:"contractAddress"`
	Method          string   `json:"method"`
	Args            []string `json:"args,omitempty"`
}

// EnergyMeasurementData carries an IoT meter reading.
type EnergyMeasurementData struct {
	DeviceID             string       `json:"deviceId"`
	EnergyConsumedKWh    float64      `json:"energyConsumedKwh"`
	EnergyProducedKWh    float64      `json:"energyProducedKwh"`
	InstantaneousPowerKW float64      `json:"instantaneousPowerKw"`
	Source               EnergySource `json:"source,omitempty"`
	Location             string       `json:"location,omitempty"`
}

// DeviceRegistrationData registers an IoT device with a grid operator.
type DeviceRegistrationData struct {
	DeviceID        string   `json:"deviceId"`
	DeviceType      string   `json:"deviceType"`
	Location        string   `json:"location,omitempty"`
	GridOperator    string   `json:"gridOperator,omitempty"`
	Capabilities    []string `json:"capabilities,omitempty"`
	FirmwareVersion string   `json:"firmwareVersion,omitempty"`
}

// Transaction is an immutable record of one ledger operation. Exactly one
// payload field matching Kind is populated. Only the signature fields may be
// set after creation; they are excluded from the content hash.
type Transaction struct {
	ID              string            `json:"id"`
	Kind            TxKind            `json:"kind"`
	From            string            `json:"from"`
	To              string            `json:"to,omitempty"`
	Fee             uint64            `json:"fee"`
	GasLimit        uint64            `json:"gasLimit"`
	GasPrice        uint64            `json:"gasPrice"`
	Timestamp       time.Time         `json:"timestamp"`
	Nonce           uint64            `json:"nonce"`
	Signature       string            `json:"signature,omitempty"`
	SignerPublicKey string            `json:"signerPublicKey,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`

	Transfer          *TransferData              `json:"transfer,omitempty"`
	EnergyTrade       *EnergyTradeData           `json:"energyTrade,omitempty"`
	Governance        *GovernanceData            `json:"governance,omitempty"`
	GenesisMint       *GenesisMintData           `json:"genesisMint,omitempty"`
	Authority         *AuthorityRegistrationData `json:"authority,omitempty"`
	ContractDeploy    *ContractDeployData        `json:"contractDeploy,omitempty"`
	ContractExecute   *ContractExecuteData       `json:"contractExecute,omitempty"`
	EnergyMeasurement *EnergyMeasurementData     `json:"energyMeasurement,omitempty"`
	Device            *DeviceRegistrationData    `json:"device,omitempty"`
}

// NewTransaction creates a transaction shell with a fresh id, the current
// timestamp and default gas parameters. Callers attach the kind payload via
// the typed constructors below.
func NewTransaction(kind TxKind, from, to string, fee uint64, nonce uint64) *Transaction {
	return &Transaction{
		ID:        uuid.New().String(),
		Kind:      kind,
		From:      from,
		To:        to,
		Fee:       fee,
		GasLimit:  DefaultGasLimit,
		GasPrice:  DefaultGasPrice,
		Timestamp: time.Now().UTC(),
		Nonce:     nonce,
	}
}

// NewTransfer creates a token transfer transaction.
func NewTransfer(from, to string, amount, fee uint64, nonce uint64, message string) *Transaction {
	tx := NewTransaction(TxTransfer, from, to, fee, nonce)
	tx.Transfer = &TransferData{Amount: amount, Message: message}
	return tx
}

// NewEnergyTrade creates an energy settlement transaction. Sell orders earn
// carbon credits at the source's rate.
func NewEnergyTrade(from, to string, trade EnergyTradeData, fee uint64, nonce uint64) *Transaction {
	if trade.OrderType == OrderSell && trade.CarbonCredits == 0 {
		trade.CarbonCredits = trade.EnergyAmountKWh * trade.Source.CarbonCreditRate()
	}
	tx := NewTransaction(TxEnergyTrade, from, to, fee, nonce)
	tx.EnergyTrade = &trade
	return tx
}

// NewGenesisMint creates the initial token issuance carried by the genesis
// block. It originates from the system address with no fee.
func NewGenesisMint(recipient string, amount uint64, description string) *Transaction {
	tx := NewTransaction(TxGenesisMint, SystemAddress, recipient, 0, 0)
	tx.GenesisMint = &GenesisMintData{Amount: amount, Description: description}
	return tx
}

// NewAuthorityRegistration creates a genesis-time authority registration.
func NewAuthorityRegistration(name, description, authorityType string) *Transaction {
	tx := NewTransaction(TxAuthorityRegistration, SystemAddress, name, 0, 0)
	tx.Authority = &AuthorityRegistrationData{
		Name:          name,
		Description:   description,
		AuthorityType: authorityType,
	}
	return tx
}

// NewGovernanceProposal creates a proposal submission.
func NewGovernanceProposal(from, title, description, proposalType string, votingPeriodDays uint32, fee uint64, nonce uint64) *Transaction {
	tx := NewTransaction(TxGovernance, from, "", fee, nonce)
	tx.Governance = &GovernanceData{
		Action:           GovProposalSubmission,
		Title:            title,
		Description:      description,
		ProposalType:     proposalType,
		VotingPeriodDays: votingPeriodDays,
	}
	return tx
}

// NewGovernanceVote creates a vote on an open proposal.
func NewGovernanceVote(from, proposalID, vote string, votingPower uint64, fee uint64, nonce uint64) *Transaction {
	tx := NewTransaction(TxGovernance, from, "", fee, nonce)
	tx.Governance = &GovernanceData{
		Action:      GovVote,
		ProposalID:  proposalID,
		Vote:        vote,
		VotingPower: votingPower,
	}
	return tx
}

// NewContractDeploy creates a contract deployment transaction.
func NewContractDeploy(from string, bytecode []byte, constructorArgs []string, fee uint64, nonce uint64) *Transaction {
	tx := NewTransaction(TxContractDeploy, from, "", fee, nonce)
	tx.ContractDeploy = &ContractDeployData{
		Bytecode:        bytecode,
		ConstructorArgs: constructorArgs,
	}
	return tx
}

// NewContractExecute creates a contract call transaction.
func NewContractExecute(from, contractAddress, method string, args []string, fee uint64, nonce uint64) *Transaction {
	tx := NewTransaction(TxContractExecute, from, contractAddress, fee, nonce)
	tx.ContractExecute = &ContractExecuteData{
		ContractAddress: contractAddress,
		Method:          method,
		Args:            args,
	}
	return tx
}

// hashContent returns the canonical encoding the content hash is computed
// over: the transaction with its signature fields cleared.
func (t *Transaction) hashContent() []byte {
	clone := *t
	clone.Signature = ""
	clone.SignerPublicKey = ""
	data, err := marshalCanonical(&clone)
	if err != nil {
		// Transaction fields are all marshalable types; this cannot fail.
		panic(fmt.Sprintf("transaction encoding failed: %v", err))
	}
	return data
}

// Hash returns the stable content hash of the transaction. Attaching a
// signature does not change it.
func (t *Transaction) Hash() string {
	return HashData(t.hashContent())
}

// Size returns the byte length of the transaction's canonical encoding.
func (t *Transaction) Size() int {
	return len(t.hashContent())
}

// IsEnergy reports whether the transaction settles an energy trade. The
// hybrid consensus path routes on this.
func (t *Transaction) IsEnergy() bool {
	return t.Kind == TxEnergyTrade
}

// Amount returns the token value moved by the transaction, excluding the fee.
func (t *Transaction) Amount() uint64 {
	switch t.Kind {
	case TxTransfer:
		if t.Transfer != nil {
			return t.Transfer.Amount
		}
	case TxEnergyTrade:
		if t.EnergyTrade != nil {
			return t.EnergyTrade.TotalValue
		}
	case TxGenesisMint:
		if t.GenesisMint != nil {
			return t.GenesisMint.Amount
		}
	}
	return 0
}

// Validate checks the transaction's structural and kind-specific rules.
// It inspects nothing outside the transaction itself.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}
	if t.From == "" {
		return fmt.Errorf("sender address cannot be empty")
	}
	if t.GasLimit == 0 {
		return fmt.Errorf("gas limit must be greater than zero")
	}

	switch t.Kind {
	case TxTransfer:
		if t.Transfer == nil {
			return fmt.Errorf("transfer payload missing")
		}
		if t.Transfer.Amount == 0 {
			return fmt.Errorf("token transfer amount must be greater than zero")
		}
		if t.To == "" {
			return fmt.Errorf("token transfer must have a recipient")
		}
	case TxEnergyTrade:
		if t.EnergyTrade == nil {
			return fmt.Errorf("energy trade payload missing")
		}
		return t.validateEnergyTrade(t.EnergyTrade)
	case TxGovernance:
		if t.Governance == nil {
			return fmt.Errorf("governance payload missing")
		}
		return t.validateGovernance(t.Governance)
	case TxGenesisMint:
		if t.GenesisMint == nil {
			return fmt.Errorf("genesis mint payload missing")
		}
		if t.To == "" {
			return fmt.Errorf("genesis mint must have a recipient")
		}
	case TxAuthorityRegistration:
		if t.Authority == nil || t.Authority.Name == "" {
			return fmt.Errorf("authority registration must name the authority")
		}
	case TxContractDeploy:
		if t.ContractDeploy == nil || len(t.ContractDeploy.Bytecode) == 0 {
			return fmt.Errorf("contract deployment must carry bytecode")
		}
	case TxContractExecute:
		if t.ContractExecute == nil || t.ContractExecute.ContractAddress == "" {
			return fmt.Errorf("contract execution must name a contract address")
		}
	case TxEnergyMeasurement:
		if t.EnergyMeasurement == nil || t.EnergyMeasurement.DeviceID == "" {
			return fmt.Errorf("energy measurement must name a device")
		}
	case TxDeviceRegistration:
		if t.Device == nil || t.Device.DeviceID == "" {
			return fmt.Errorf("device registration must name a device")
		}
	default:
		return fmt.Errorf("unknown transaction kind: %s", t.Kind)
	}

	return nil
}

func (t *Transaction) validateEnergyTrade(trade *EnergyTradeData) error {
	if trade.EnergyAmountKWh <= 0 {
		return fmt.Errorf("energy amount must be positive")
	}
	if trade.EnergyAmountKWh > MaxEnergyPerTrade {
		return fmt.Errorf("energy amount exceeds maximum limit (%.0f kWh)", MaxEnergyPerTrade)
	}
	if trade.PricePerKWh == 0 {
		return fmt.Errorf("energy price must be greater than zero")
	}
	if trade.PricePerKWh < MinEnergyPrice || trade.PricePerKWh > MaxEnergyPrice {
		return fmt.Errorf("energy price outside acceptable range (%d-%d tokens/kWh)",
			MinEnergyPrice, MaxEnergyPrice)
	}
	if !trade.DeliveryStart.Before(trade.DeliveryEnd) {
		return fmt.Errorf("invalid delivery window")
	}
	if trade.OrderType == OrderMatch && (trade.BuyOrderID == "" || trade.SellOrderID == "") {
		return fmt.Errorf("matched trade must reference both order ids")
	}
	return nil
}

func (t *Transaction) validateGovernance(gov *GovernanceData) error {
	switch gov.Action {
	case GovProposalSubmission:
		if gov.Title == "" || gov.Description == "" {
			return fmt.Errorf("proposal title and description cannot be empty")
		}
		if gov.VotingPeriodDays == 0 || gov.VotingPeriodDays > MaxVotingPeriodDays {
			return fmt.Errorf("voting period must be between 1-%d days", MaxVotingPeriodDays)
		}
	case GovVote:
		if gov.ProposalID == "" {
			return fmt.Errorf("proposal ID cannot be empty")
		}
		if gov.VotingPower == 0 {
			return fmt.Errorf("voting power must be greater than zero")
		}
	case GovProposalExecution:
		if gov.ProposalID == "" {
			return fmt.Errorf("proposal ID cannot be empty")
		}
	case GovVotingDelegation:
		if gov.DelegateTo == "" {
			return fmt.Errorf("delegation must name a delegate")
		}
	default:
		return fmt.Errorf("unknown governance action: %s", gov.Action)
	}
	return nil
}

// Sign computes the content hash and attaches the signer's signature and
// public key. The content hash itself is unchanged by signing.
func (t *Transaction) Sign(signer security.Signer) error {
	if signer == nil {
		return fmt.Errorf("signer cannot be nil")
	}
	hashBytes, err := hex.DecodeString(t.Hash())
	if err != nil {
		return fmt.Errorf("failed to decode content hash for signing: %w", err)
	}
	signature, err := signer.Sign(hashBytes)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	t.Signature = hex.EncodeToString(signature)
	t.SignerPublicKey = hex.EncodeToString(signer.PublicKey())
	return nil
}

// VerifySignature recomputes the content hash and checks the attached
// signature against the attached public key.
func (t *Transaction) VerifySignature() (bool, error) {
	if t.Signature == "" {
		return false, fmt.Errorf("transaction signature is empty")
	}
	if t.SignerPublicKey == "" {
		return false, fmt.Errorf("transaction signer public key is empty")
	}
	publicKey, err := hex.DecodeString(t.SignerPublicKey)
	if err != nil {
		return false, fmt.Errorf("failed to decode signer public key: %w", err)
	}
	signature, err := hex.DecodeString(t.Signature)
	if err != nil {
		return false, fmt.Errorf("failed to decode transaction signature: %w", err)
	}
	hashBytes, err := hex.DecodeString(t.Hash())
	if err != nil {
		return false, fmt.Errorf("failed to decode content hash: %w", err)
	}
	return security.Verify(publicKey, hashBytes, signature), nil
}
