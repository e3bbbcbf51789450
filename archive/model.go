package archive

// sqlite models

type Execution struct {
	Id               uint64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ProposalId       string `gorm:"unique_index" json:"proposal_id"`
	Network          string `json:"network"`
	Dao              string `gorm:"index" json:"dao"`
	RealityModule    string `json:"reality_module"`
	BatchHash        string `json:"batch_hash"`
	QuestionId       string `json:"question_id"`
	Status           string `gorm:"index" json:"status"`
	Bond             string `json:"bond"`
	Txs              int    `json:"txs"`
	Executed         int    `json:"executed"`
	FailureReason    string `json:"failure_reason"`
	FinalizedAt      int64  `json:"finalized_at"`
	CreateTimestamp  int64  `json:"create_timestamp"`
	ArchiveTimestamp int64  `json:"archive_timestamp"`
}

type Transaction struct {
	Id            uint64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ProposalId    string `gorm:"index" json:"proposal_id"`
	TxIndex       int    `json:"tx_index"`
	Kind          string `json:"kind"`
	To            string `json:"to"`
	Value         string `json:"value"`
	Operation     uint8  `json:"operation"`
	Nonce         uint64 `json:"nonce"`
	TxHash        string `json:"tx_hash"`
	BroadcastHash string `json:"broadcast_hash"`
}
