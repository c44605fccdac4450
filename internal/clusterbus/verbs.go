package clusterbus

// Verb names, client → master unless noted.
const (
	VerbClusterReqLogin = "cluster.req.login"
	VerbClusterResLogin = "cluster.res.login"
	VerbClusterReqPing  = "cluster.req.ping"
	VerbClusterResPing  = "cluster.res.ping"

	VerbDBReqSubscribe  = "db.req.subscribe"
	VerbDBReqInsert     = "db.req.insert"
	VerbDBReqInsertAuto = "db.req.insert.auto"
	VerbDBReqUpdate     = "db.req.update"
	VerbDBReqRemove     = "db.req.remove"
	VerbDBReqClear      = "db.req.clear"

	// Master → subscribers.
	VerbDBResInsert = "db.res.insert"
	VerbDBResUpdate = "db.res.update"
	VerbDBResRemove = "db.res.remove"
	VerbDBResClear  = "db.res.clear"

	VerbPtyReqLogin          = "pty.req.login"
	VerbPtyReqOpenConnection = "pty.req.open.connection"
	VerbPtyReqCloseConnection = "pty.req.close.connection"
	VerbPtyReqRegister       = "pty.req.register"
	VerbPtyReqDeregister     = "pty.req.deregister"
	VerbPtyReqOpenChannel    = "pty.req.open.channel"
	VerbPtyReqCloseChannel   = "pty.req.close.channel"
	VerbPtyReqPushData       = "pty.req.push.data"
	VerbPtyReqTransferData   = "pty.req.transfer.data"
	VerbPtyReqStop           = "pty.req.stop"

	VerbCfgReqBackup = "cfg.req.backup"
)

// VerbDBResSubscribeTrx is emitted as the final frame of a subscribe-snapshot
// reply, separating the replayed rows from
// live deltas.
const VerbDBResSubscribeTrx = "db.res.subscribe.trx"
