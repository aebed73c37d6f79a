package apacheta

// HTTP surface shared by the remote client and the gateway.
const (
	APIPrefix              = "/api/v1"
	HeaderAPIKey           = "X-API-Key"
	HeaderInterfaceVersion = "X-Interface-Version"
)

// Named queries. The names double as access-policy operation names.
const (
	QueryProjectState      = "project_state"
	QueryClaimsAbout       = "claims_about"
	QueryCorrectionChain   = "correction_chain"
	QueryEpistemicStatus   = "epistemic_status"
	QueryDisagreements     = "disagreements"
	QueryCompositionGraph  = "composition_graph"
	QueryBridges           = "bridges"
	QueryLineage           = "lineage"
	QueryReadingOrder      = "reading_order"
	QueryCrossModel        = "cross_model"
	QueryErrorClasses      = "error_classes"
	QueryAntiPatterns      = "anti_patterns"
	QueryUnreliableSignals = "unreliable_signals"
	QueryLosses            = "losses"
	QueryLossPatterns      = "loss_patterns"
	QueryOpenQuestions     = "open_questions"
	QueryAuthorship        = "authorship"
	QueryEntitiesByUUID    = "entities_by_uuid"
	QueryUnlearn           = "unlearn"
	QueryCompositions      = "compositions"
	QueryCorrectionsFor    = "corrections_for"
	QueryDissentsFor       = "dissents_for"
	QueryTensorsByModel    = "tensors_by_model"
	QueryBootstraps        = "bootstraps"
	QuerySchemaHistory     = "schema_history"
)

// Query parameters.
const (
	ParamTopic      = "topic"
	ParamClaimID    = "claim_id"
	ParamTensorID   = "tensor_id"
	ParamTag        = "tag"
	ParamEntityUUID = "entity_uuid"
	ParamFamily     = "model_family"
	ParamInstanceID = "instance_id"
)

// QueryParams maps each named query to the single parameter it takes, or ""
// when it takes none.
var QueryParams = map[string]string{
	QueryProjectState:      "",
	QueryClaimsAbout:       ParamTopic,
	QueryCorrectionChain:   ParamClaimID,
	QueryEpistemicStatus:   ParamClaimID,
	QueryDisagreements:     "",
	QueryCompositionGraph:  "",
	QueryBridges:           "",
	QueryLineage:           ParamTensorID,
	QueryReadingOrder:      ParamTag,
	QueryCrossModel:        "",
	QueryErrorClasses:      "",
	QueryAntiPatterns:      "",
	QueryUnreliableSignals: "",
	QueryLosses:            ParamTensorID,
	QueryLossPatterns:      "",
	QueryOpenQuestions:     "",
	QueryAuthorship:        ParamTensorID,
	QueryEntitiesByUUID:    ParamEntityUUID,
	QueryUnlearn:           ParamTopic,
	QueryCompositions:      ParamTensorID,
	QueryCorrectionsFor:    ParamTensorID,
	QueryDissentsFor:       ParamTensorID,
	QueryTensorsByModel:    ParamFamily,
	QueryBootstraps:        ParamInstanceID,
	QuerySchemaHistory:     "",
}
