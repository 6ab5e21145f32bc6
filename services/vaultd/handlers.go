package vaultd

import (
	"errors"
	"net/http"
	"strings"

	"stakevault/crypto"
	"stakevault/native/vault"
	"stakevault/observability/metrics"
)

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type selectorRequest struct {
	Index *int   `json:"index,omitempty"`
	ID    string `json:"id,omitempty"`
}

func (r selectorRequest) selector() (vault.RequestSelector, error) {
	id := strings.TrimSpace(r.ID)
	switch {
	case r.Index != nil && id != "":
		return vault.RequestSelector{}, errors.New("index and id are mutually exclusive")
	case r.Index != nil:
		return vault.RequestAt(*r.Index), nil
	case id != "":
		return vault.RequestWithID(id), nil
	default:
		return vault.AllRequests(), nil
	}
}

type initializeRequest struct {
	AssetID       string `json:"asset_id,omitempty"`
	VestingPeriod uint64 `json:"vesting_period,omitempty"`
}

type vestingPeriodRequest struct {
	Seconds uint64 `json:"seconds"`
}

type permissionsRequest struct {
	AllowDeposits    *bool `json:"allow_deposits,omitempty"`
	AllowWithdrawals *bool `json:"allow_withdrawals,omitempty"`
}

type fundRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

type vaultResponse struct {
	Vault   *vault.StakeVault `json:"vault"`
	Balance uint64            `json:"balance"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	caller, ok := s.withCaller(w, r, &req)
	if !ok {
		return
	}
	params := vault.InitParams{AssetID: req.AssetID, VestingPeriod: req.VestingPeriod}
	if strings.TrimSpace(params.AssetID) == "" {
		params.AssetID = s.assetID
	}
	if params.VestingPeriod == 0 {
		params.VestingPeriod = s.vestingPeriod
	}
	created, err := s.engine.Initialize(caller, params)
	s.finish(w, r, "initialize", caller, created, err)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	caller, ok := s.withCaller(w, r, &req)
	if !ok {
		return
	}
	stake, err := s.engine.DepositStake(caller, req.Amount)
	s.finish(w, r, "deposit_stake", caller, stake, err)
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	caller, ok := s.withCaller(w, r, &req)
	if !ok {
		return
	}
	receipt, err := s.engine.RequestUnstake(caller, req.Amount)
	s.finish(w, r, "unstake_request", caller, receipt, err)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req selectorRequest
	caller, ok := s.withCaller(w, r, &req)
	if !ok {
		return
	}
	selector, err := req.selector()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidSelector", err.Error())
		return
	}
	claimed, err := s.engine.ClaimVested(caller, selector)
	s.finish(w, r, "claim_vested", caller, map[string]uint64{"claimed": claimed}, err)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req selectorRequest
	caller, ok := s.withCaller(w, r, &req)
	if !ok {
		return
	}
	selector, err := req.selector()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidSelector", err.Error())
		return
	}
	cancelled, err := s.engine.CancelUnstake(caller, selector)
	s.finish(w, r, "cancel_unstake", caller, map[string]uint64{"cancelled": cancelled}, err)
}

func (s *Server) handleDepositRewards(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	caller, ok := s.withCaller(w, r, &req)
	if !ok {
		return
	}
	err := s.engine.DepositRewards(caller, req.Amount)
	s.finish(w, r, "deposit_rewards", caller, map[string]uint64{"deposited": req.Amount}, err)
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.withCaller(w, r, nil)
	if !ok {
		return
	}
	dist, err := s.engine.DistributeRewards()
	if err == nil {
		metrics.Vault().AddDistributionRemainder(remainderOf(dist))
	}
	s.finish(w, r, "distribute_rewards", caller, dist, err)
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.withCaller(w, r, nil)
	if !ok {
		return
	}
	collected, err := s.engine.CollectRewards(caller)
	s.finish(w, r, "collect_rewards", caller, map[string]uint64{"collected": collected}, err)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.withCaller(w, r, nil)
	if !ok {
		return
	}
	err := s.engine.PauseVault(caller)
	s.finish(w, r, "pause_vault", caller, map[string]bool{"paused": true}, err)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.withCaller(w, r, nil)
	if !ok {
		return
	}
	err := s.engine.UnpauseVault(caller)
	s.finish(w, r, "unpause_vault", caller, map[string]bool{"paused": false}, err)
}

func (s *Server) handleVestingPeriod(w http.ResponseWriter, r *http.Request) {
	var req vestingPeriodRequest
	caller, ok := s.withCaller(w, r, &req)
	if !ok {
		return
	}
	err := s.engine.UpdateVestingPeriod(caller, req.Seconds)
	s.finish(w, r, "update_vesting_period", caller, map[string]uint64{"vestingPeriod": req.Seconds}, err)
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	var req permissionsRequest
	caller, ok := s.withCaller(w, r, &req)
	if !ok {
		return
	}
	perms, err := s.engine.UpdatePermissions(caller, vault.PermissionsUpdate{
		AllowDeposits:    vault.SetFrom(req.AllowDeposits),
		AllowWithdrawals: vault.SetFrom(req.AllowWithdrawals),
	})
	s.finish(w, r, "update_permissions", caller, perms, err)
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	caller, ok := s.withCaller(w, r, &req)
	if !ok {
		return
	}
	withdrawn, err := s.engine.EmergencyWithdraw(caller, req.Amount)
	s.finish(w, r, "emergency_withdraw", caller, map[string]uint64{"withdrawn": withdrawn}, err)
}

func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	caller, ok := s.withCaller(w, r, &req)
	if !ok {
		return
	}
	current, err := s.engine.Vault()
	if err != nil {
		writeError(w, err)
		return
	}
	if !current.Admin.Equal(caller) {
		writeError(w, vault.ErrUnauthorized)
		return
	}
	account, err := crypto.DecodeAddress(req.Account)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidAddress", "invalid account address")
		return
	}
	if req.Amount == 0 || (s.faucetMax > 0 && req.Amount > s.faucetMax) {
		writeError(w, vault.ErrInvalidAmount)
		return
	}
	if err := s.funder.Credit(current.AssetID, account, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("faucet credit", "account", account.String(), "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]any{"account": account.String(), "credited": req.Amount})
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	current, err := s.engine.Vault()
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := s.engine.VaultBalance()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vaultResponse{Vault: current, Balance: balance})
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r)
	if !ok {
		return
	}
	summary, err := s.engine.Summary(owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r)
	if !ok {
		return
	}
	balance, err := s.engine.Balance(owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": owner.String(), "balance": balance})
}

func remainderOf(d vault.Distribution) uint64 {
	if d.Distributed == 0 {
		return 0
	}
	return d.Remaining
}
