package neo4j

// Cypher used by GraphStore. Relationship types cannot be parameters, so the
// two vote variants are separate statements.

var constraintQueries = []string{
	`CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
	`CREATE CONSTRAINT course_id IF NOT EXISTS FOR (c:Course) REQUIRE c.id IS UNIQUE`,
	`CREATE CONSTRAINT comment_id IF NOT EXISTS FOR (c:Comment) REQUIRE c.id IS UNIQUE`,
}

const createCommentQuery = `
MERGE (u:User {id: $userId})
MERGE (c:Course {id: $courseId})
CREATE (u)-[:COMMENTED {id: $id, userName: $userName, content: $content, rating: $rating, createdAt: $createdAt}]->(c)
CREATE (:Comment {id: $id, userId: $userId, courseId: $courseId, createdAt: $createdAt})
`

// commentProjection expects u, r, c and an optional cm in scope.
const commentProjection = `
RETURN r.id AS id, u.id AS userId, r.userName AS userName, c.id AS courseId,
       r.content AS content, r.rating AS rating, r.createdAt AS createdAt,
       CASE WHEN cm IS NULL THEN 0 ELSE size([(x:User)-[:LIKED]->(cm) | x]) END AS likes,
       CASE WHEN cm IS NULL THEN 0 ELSE size([(x:User)-[:DISLIKED]->(cm) | x]) END AS dislikes,
       CASE WHEN cm IS NULL THEN 0 ELSE size([(x:User)-[:REPLIED]->(cm) | x]) END AS replies
ORDER BY r.createdAt DESC
`

const courseCommentsQuery = `
MATCH (u:User)-[r:COMMENTED]->(c:Course {id: $courseId})
OPTIONAL MATCH (cm:Comment {id: r.id})
` + commentProjection

const userCommentsQuery = `
MATCH (u:User {id: $userId})-[r:COMMENTED]->(c:Course)
OPTIONAL MATCH (cm:Comment {id: r.id})
` + commentProjection

const courseRatingsQuery = `
MATCH (:User)-[r:COMMENTED]->(:Course {id: $courseId})
RETURN r.id AS id, r.rating AS rating
`

const addReactionQuery = `
MATCH (cm:Comment {id: $commentId})
MERGE (u:User {id: $userId})
MERGE (u)-[r:REACTED {type: $type}]->(cm)
ON CREATE SET r.createdAt = $now
RETURN cm.id AS id
`

const addReplyQuery = `
MATCH (cm:Comment {id: $commentId})
MERGE (u:User {id: $userId})
CREATE (u)-[:REPLIED {id: $id, content: $content, createdAt: $createdAt}]->(cm)
RETURN cm.id AS id
`

const likeQuery = `
MATCH (cm:Comment {id: $commentId})
MERGE (u:User {id: $userId})
WITH u, cm
OPTIONAL MATCH (u)-[old:DISLIKED]->(cm)
DELETE old
MERGE (u)-[v:LIKED]->(cm)
ON CREATE SET v.createdAt = $now
RETURN cm.id AS id
`

const dislikeQuery = `
MATCH (cm:Comment {id: $commentId})
MERGE (u:User {id: $userId})
WITH u, cm
OPTIONAL MATCH (u)-[old:LIKED]->(cm)
DELETE old
MERGE (u)-[v:DISLIKED]->(cm)
ON CREATE SET v.createdAt = $now
RETURN cm.id AS id
`

const upsertEnrollmentQuery = `
MERGE (u:User {id: $userId})
MERGE (c:Course {id: $courseId})
MERGE (u)-[e:ENROLLED_IN]->(c)
SET e.status = $status, e.progress = $progress, e.updatedAt = $now
`
