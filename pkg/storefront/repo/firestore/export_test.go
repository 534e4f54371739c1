package firestore

var PairDocID = pairDocID
